// Package auth authenticates site operators on the admin endpoints and
// checks their capabilities.
//
// Bearer JWTs (HMAC) and static API keys are supported; a Chain tries
// several in order. Capabilities resolves role grants the way the host
// does, so an "administrator" holds manage_options. RequireCapability ties
// both together as HTTP middleware.
package auth
