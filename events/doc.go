// Package events turns NATS messages into plugin actions, so publishers
// other than the host can invalidate cached menus.
//
//	menucache.menu.updated   {"menu":"12"} or 12   -> wp_update_nav_menu
//	site.cache.cleared       any payload           -> after_rocket_clean_domain
//
// Subscriptions join a queue group, so each message is handled by one
// replica. Requests carrying a reply subject get "ok" or "error: <msg>".
//
// Evictions is the fan-out counterpart. Replicas that keep an in-process
// tier in front of the shared bucket publish every invalidated key prefix
// on menucache.local.evict, and every replica drops matching local keys.
package events
