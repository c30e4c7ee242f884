// Package settings persists the set of menus excluded from caching.
//
// The set is stored as a single named option whose value is a JSON list of
// menu ids. Readers get an immutable ExcludedSet snapshot; writers replace the
// whole set at once.
package settings
