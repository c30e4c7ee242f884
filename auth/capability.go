package auth

import (
	"fmt"
	"slices"
	"time"
)

// Capabilities used by the admin surface. CapRenderHooks is held by the
// host process that calls the render hooks.
const (
	CapManageOptions    = "manage_options"
	CapEditThemeOptions = "edit_theme_options"
	CapRenderHooks      = "menucache_render_hooks"
)

// RoleConfig lists the capabilities a role grants.
type RoleConfig struct {
	Capabilities []string

	// Inherits lists roles whose capabilities this role also grants.
	Inherits []string
}

// DefaultRoles mirrors the host's stock roles for the capabilities the
// cache admin actions check.
func DefaultRoles() map[string]RoleConfig {
	return map[string]RoleConfig{
		"administrator": {Capabilities: []string{CapManageOptions}, Inherits: []string{"editor", "menu_host"}},
		"editor":        {Capabilities: []string{CapEditThemeOptions}},
		"menu_host":     {Capabilities: []string{CapRenderHooks}},
	}
}

// Capabilities resolves what an identity may do from its roles and direct grants.
type Capabilities struct {
	roles map[string]RoleConfig
}

// NewCapabilities creates a resolver. A nil map means DefaultRoles.
func NewCapabilities(roles map[string]RoleConfig) *Capabilities {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &Capabilities{roles: roles}
}

// Can reports whether id holds capability.
func (c *Capabilities) Can(id *Identity, capability string) bool {
	if !id.Valid(time.Now()) {
		return false
	}
	if id.HasCapability(capability) {
		return true
	}

	seen := make(map[string]bool)
	queue := append([]string(nil), id.Roles...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		role, ok := c.roles[name]
		if !ok {
			continue
		}
		if slices.Contains(role.Capabilities, capability) {
			return true
		}
		queue = append(queue, role.Inherits...)
	}
	return false
}

// Require returns a *DeniedError when id lacks capability.
func (c *Capabilities) Require(id *Identity, capability string) error {
	if c.Can(id, capability) {
		return nil
	}
	principal := ""
	if id != nil {
		principal = id.Principal
	}
	return &DeniedError{Principal: principal, Capability: capability}
}

// DeniedError reports a missing capability. It matches ErrForbidden.
type DeniedError struct {
	Principal  string
	Capability string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("auth: %q lacks capability %q", e.Principal, e.Capability)
}

// Is reports whether this error matches the target.
func (e *DeniedError) Is(target error) bool {
	return target == ErrForbidden
}
