package events

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/theo-gk/wordpress-menu-caching/cache"
	"github.com/theo-gk/wordpress-menu-caching/menucache"
	"github.com/theo-gk/wordpress-menu-caching/observe"
)

// SubjectEvict carries invalidated key prefixes to every replica.
const SubjectEvict = "menucache.local.evict"

// HeaderOrigin names the replica that published an eviction.
const HeaderOrigin = "Menucache-Origin"

// BroadcastConn is the part of *nats.Conn Evictions needs.
type BroadcastConn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	PublishMsg(m *nats.Msg) error
}

// EvictionConfig configures Evictions. Empty fields take the defaults.
type EvictionConfig struct {
	Subject string

	// Origin identifies this replica. Its own messages are skipped, since
	// the local tier was already cleared by the invalidation itself.
	Origin string

	HandlerTimeout time.Duration
}

// Evictions keeps the in-process tier of every replica in step with the
// shared store. Evict publishes an invalidated prefix; every replica,
// subscribed without a queue group, drops matching keys from its local tier.
type Evictions struct {
	nc     BroadcastConn
	local  cache.Cache
	cfg    EvictionConfig
	logger observe.Logger

	mu      sync.Mutex
	started bool
	sub     *nats.Subscription
}

// NewEvictions creates an eviction relay for the local tier. A nil logger
// discards.
func NewEvictions(nc BroadcastConn, local cache.Cache, cfg EvictionConfig, logger observe.Logger) *Evictions {
	if cfg.Subject == "" {
		cfg.Subject = SubjectEvict
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Evictions{nc: nc, local: local, cfg: cfg, logger: logger}
}

// Evict publishes prefix to the other replicas.
func (e *Evictions) Evict(_ context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrBadPayload)
	}
	msg := nats.NewMsg(e.cfg.Subject)
	msg.Data = []byte(prefix)
	if e.cfg.Origin != "" {
		msg.Header.Set(HeaderOrigin, e.cfg.Origin)
	}
	if err := e.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("events: publish eviction: %w", err)
	}
	return nil
}

// Start subscribes to the eviction subject. Every replica receives every
// message.
func (e *Evictions) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}

	sub, err := e.nc.Subscribe(e.cfg.Subject, func(msg *nats.Msg) {
		hctx, cancel := context.WithTimeout(ctx, e.cfg.HandlerTimeout)
		defer cancel()
		if err := e.Handle(hctx, msg); err != nil {
			e.logger.Error(hctx, "local eviction failed", observe.F("subject", msg.Subject), observe.F("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("events: subscribe %s: %w", e.cfg.Subject, err)
	}
	e.sub, e.started = sub, true
	e.logger.Info(ctx, "eviction relay started", observe.F("subject", e.cfg.Subject), observe.F("origin", e.cfg.Origin))
	return nil
}

// Stop unsubscribes. It is safe to call more than once.
func (e *Evictions) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := e.sub
	e.sub, e.started = nil, false
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

// Handle drops the local keys under the prefix carried by msg.
func (e *Evictions) Handle(ctx context.Context, msg *nats.Msg) error {
	if e.cfg.Origin != "" && msg.Header.Get(HeaderOrigin) == e.cfg.Origin {
		return nil
	}
	prefix := string(bytes.TrimSpace(msg.Data))
	if prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrBadPayload)
	}
	n, err := e.local.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("events: evict %s: %w", prefix, err)
	}
	e.logger.Debug(ctx, "local tier evicted", observe.F("prefix", prefix), observe.F("removed", n))
	return nil
}

var _ menucache.Peers = (*Evictions)(nil)
