// Package hooks is an explicit registration table mapping event names to
// priority-ordered handlers.
//
// Filters transform a value and hand it to the next filter; actions react
// to an event and return an error. Hosts that dispatch by name (the menu
// renderer, admin endpoints, message subscribers) look handlers up here
// instead of relying on global registration side effects.
//
//	reg := hooks.NewRegistry()
//	_ = reg.AddFilter("pre_wp_nav_menu", "show_cached", hooks.PriorityLast, showCached)
//	out, err := reg.ApplyFilters(ctx, "pre_wp_nav_menu", nil, req)
package hooks
