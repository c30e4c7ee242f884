package hooks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Priorities. Lower runs first.
const (
	PriorityFirst   = math.MinInt
	DefaultPriority = 10
	PriorityLast    = math.MaxInt
)

var (
	// ErrInvalidRegistration indicates an empty hook or handler name, or a nil func.
	ErrInvalidRegistration = errors.New("hooks: invalid registration")

	// ErrDuplicateHandler indicates a handler name already registered on a hook.
	ErrDuplicateHandler = errors.New("hooks: handler already registered")
)

// FilterFunc transforms value. args carry the hook's extra arguments.
// A filter that does not want to act returns value unchanged.
type FilterFunc func(ctx context.Context, value any, args ...any) (any, error)

// ActionFunc reacts to an event.
type ActionFunc func(ctx context.Context, args ...any) error

// Kind distinguishes filters from actions.
type Kind string

const (
	KindFilter Kind = "filter"
	KindAction Kind = "action"
)

// Registration describes one handler bound to a hook.
type Registration struct {
	Hook     string
	Handler  string
	Priority int
	Kind     Kind
}

type entry struct {
	Registration
	seq    uint64
	filter FilterFunc
	action ActionFunc
}

// Registry is an explicit, ordered table of hook handlers.
//
// Handlers on a hook run in ascending priority; equal priorities run in
// registration order. Dispatch works on a snapshot, so handlers may
// register further handlers without deadlocking.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string][]entry
	seq   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string][]entry)}
}

// AddFilter binds fn to hook under the given handler name.
func (r *Registry) AddFilter(hook, handler string, priority int, fn FilterFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil filter for %q", ErrInvalidRegistration, hook)
	}
	return r.add(entry{
		Registration: Registration{Hook: hook, Handler: handler, Priority: priority, Kind: KindFilter},
		filter:       fn,
	})
}

// AddAction binds fn to hook under the given handler name.
func (r *Registry) AddAction(hook, handler string, priority int, fn ActionFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil action for %q", ErrInvalidRegistration, hook)
	}
	return r.add(entry{
		Registration: Registration{Hook: hook, Handler: handler, Priority: priority, Kind: KindAction},
		action:       fn,
	})
}

func (r *Registry) add(e entry) error {
	e.Hook = strings.TrimSpace(e.Hook)
	e.Handler = strings.TrimSpace(e.Handler)
	if e.Hook == "" || e.Handler == "" {
		return ErrInvalidRegistration
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.hooks[e.Hook]
	for _, existing := range list {
		if existing.Handler == e.Handler {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateHandler, e.Handler, e.Hook)
		}
	}

	r.seq++
	e.seq = r.seq
	list = append(list, e)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.hooks[e.Hook] = list
	return nil
}

// ApplyFilters passes value through every filter on hook and returns the
// result. The first error stops the chain and is returned with the value
// produced so far.
func (r *Registry) ApplyFilters(ctx context.Context, hook string, value any, args ...any) (any, error) {
	for _, e := range r.snapshot(hook) {
		if e.Kind != KindFilter {
			continue
		}
		next, err := e.filter(ctx, value, args...)
		if err != nil {
			return value, fmt.Errorf("hooks: %s/%s: %w", hook, e.Handler, err)
		}
		value = next
	}
	return value, nil
}

// DoAction runs every action on hook. All handlers run even when some
// fail; their errors are joined.
func (r *Registry) DoAction(ctx context.Context, hook string, args ...any) error {
	var errs []error
	for _, e := range r.snapshot(hook) {
		if e.Kind != KindAction {
			continue
		}
		if err := e.action(ctx, args...); err != nil {
			errs = append(errs, fmt.Errorf("hooks: %s/%s: %w", hook, e.Handler, err))
		}
	}
	return errors.Join(errs...)
}

// Has reports whether any handler is bound to hook.
func (r *Registry) Has(hook string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[hook]) > 0
}

// Handlers lists the registrations on hook in dispatch order.
func (r *Registry) Handlers(hook string) []Registration {
	list := r.snapshot(hook)
	out := make([]Registration, len(list))
	for i, e := range list {
		out[i] = e.Registration
	}
	return out
}

// Hooks returns the names of all hooks with handlers, sorted.
func (r *Registry) Hooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) snapshot(hook string) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry(nil), r.hooks[hook]...)
}
