// Package menucache caches rendered navigation-menu markup.
//
// A render request passes through two hooks. PreRender returns stored markup
// when the request is cacheable and a copy exists; PostRender stores freshly
// rendered markup and passes it through unchanged. Both hooks run the same
// ExclusionPolicy.Decide on the same normalized arguments, so a request is
// either cacheable on both paths or on neither.
//
// Keys have the shape <namespace>.<menu>.<hash>, which lets the
// InvalidationController drop every variant of one menu with a single prefix
// delete, or everything the cache owns with the namespace prefix.
//
// Service ties the pieces together and owns the excluded-menu set: it loads
// the set from a settings.Store and swaps in a new immutable policy whenever
// the set changes.
package menucache
