// Package plugin binds the menu cache to the host's hook names.
//
// Bootstrap registers, on a hooks.Registry:
//
//	pre_wp_nav_menu              filter  show cached markup       last
//	wp_nav_menu                  filter  save rendered markup     last
//	wp_update_nav_menu           action  purge the updated menu   last
//	after_rocket_clean_domain    action  purge every menu         10
//	wp_ajax_dc_menu_caching_purge_all  action  purge every menu  10
//	wp_ajax_dc_save_nocache_menus      action  save excluded set 10
//
// RenderMenu replays the host's render flow through the registry, and
// Dispatch runs an admin action by name.
package plugin
