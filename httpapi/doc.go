// Package httpapi exposes the menu cache to a host over HTTP.
//
// The host calls the hook endpoints around each menu render:
//
//	POST /hooks/pre-render          {"menu":"12","args":{...}}   -> {"hit":true,"markup":"..."} | {"hit":false}
//	POST /hooks/render              {"menu":"12","args":{...},"markup":"..."} -> {"markup":"..."}
//	POST /hooks/menu-updated        {"menu":"12"}
//	POST /hooks/site-cache-cleared
//
// Hook requests must authenticate as an identity holding the
// menucache_render_hooks capability (the menu_host role) unless the server
// was built with InsecureHooks. The host forwards admin actions to
// POST /admin-ajax, which requires an authenticated identity with the
// manage_options capability and answers in the {"success":...} envelope
// admin pages expect. Health probes are mounted
// from package health.
package httpapi
