package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"

	"github.com/theo-gk/wordpress-menu-caching/hooks"
	"github.com/theo-gk/wordpress-menu-caching/observe"
	"github.com/theo-gk/wordpress-menu-caching/plugin"
)

// Default subjects and queue group.
const (
	SubjectMenuUpdated      = "menucache.menu.updated"
	SubjectSiteCacheCleared = "site.cache.cleared"
	DefaultQueue            = "menucache"
	DefaultHandlerTimeout   = 10 * time.Second
)

var (
	// ErrBadPayload is returned for a menu-updated message without a menu id.
	ErrBadPayload = errors.New("events: bad payload")

	// ErrUnknownSubject is returned by Handle for a subject not subscribed.
	ErrUnknownSubject = errors.New("events: unknown subject")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("events: already started")
)

// Conn is the part of *nats.Conn the subscriber needs.
type Conn interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Config names the subjects to follow. Empty fields take the defaults.
type Config struct {
	MenuUpdated      string
	SiteCacheCleared string
	Queue            string
	HandlerTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.MenuUpdated == "" {
		c.MenuUpdated = SubjectMenuUpdated
	}
	if c.SiteCacheCleared == "" {
		c.SiteCacheCleared = SubjectSiteCacheCleared
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = DefaultHandlerTimeout
	}
}

// Subscriber dispatches NATS messages to registered plugin actions.
type Subscriber struct {
	reg    *hooks.Registry
	cfg    Config
	logger observe.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber over reg. A nil logger discards.
func NewSubscriber(reg *hooks.Registry, cfg Config, logger observe.Logger) *Subscriber {
	cfg.applyDefaults()
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Subscriber{reg: reg, cfg: cfg, logger: logger}
}

// Start subscribes on nc. Handlers run with a context derived from ctx, so
// cancelling ctx aborts in-flight invalidations; call Stop to unsubscribe.
func (s *Subscriber) Start(ctx context.Context, nc Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs != nil {
		return ErrAlreadyStarted
	}

	for _, subject := range []string{s.cfg.MenuUpdated, s.cfg.SiteCacheCleared} {
		sub, err := nc.QueueSubscribe(subject, s.cfg.Queue, s.callback(ctx))
		if err != nil {
			s.unsubscribeLocked()
			return fmt.Errorf("events: subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.logger.Info(ctx, "event subscriber started",
		observe.F("subjects", []string{s.cfg.MenuUpdated, s.cfg.SiteCacheCleared}),
		observe.F("queue", s.cfg.Queue))
	return nil
}

// Stop removes every subscription. It is safe to call more than once.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribeLocked()
}

func (s *Subscriber) unsubscribeLocked() error {
	var errs []error
	for _, sub := range s.subs {
		if sub != nil {
			errs = append(errs, sub.Unsubscribe())
		}
	}
	s.subs = nil
	return errors.Join(errs...)
}

func (s *Subscriber) callback(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		hctx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()

		err := s.Handle(hctx, msg.Subject, msg.Data)
		if err != nil {
			s.logger.Error(hctx, "event handler failed", observe.F("subject", msg.Subject), observe.F("error", err))
		}
		if msg.Reply == "" {
			return
		}
		if rerr := msg.Respond(replyPayload(err)); rerr != nil {
			s.logger.Warn(hctx, "event reply failed", observe.F("subject", msg.Subject), observe.F("error", rerr))
		}
	}
}

// Handle runs the action bound to subject with data as its payload.
func (s *Subscriber) Handle(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case s.cfg.MenuUpdated:
		menu, err := ParseMenuID(data)
		if err != nil {
			return err
		}
		return s.reg.DoAction(ctx, plugin.HookMenuUpdated, menu)
	case s.cfg.SiteCacheCleared:
		return s.reg.DoAction(ctx, plugin.HookSiteCacheCleared)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}
}

// ParseMenuID reads a menu id from {"menu":"12"}, {"menu":12}, "12" or a
// bare 12.
func ParseMenuID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return "", fmt.Errorf("%w: empty", ErrBadPayload)
	case !gjson.ValidBytes(data):
		if data[0] == '{' {
			return "", fmt.Errorf("%w: malformed JSON", ErrBadPayload)
		}
		return nonEmpty(string(data))
	}

	v := gjson.ParseBytes(data)
	if v.IsObject() {
		if v = v.Get("menu"); !v.Exists() {
			return "", fmt.Errorf("%w: no menu field", ErrBadPayload)
		}
	}
	switch v.Type {
	case gjson.String:
		return nonEmpty(v.Str)
	case gjson.Number:
		return nonEmpty(v.Raw)
	default:
		return "", fmt.Errorf("%w: menu must be a string or number, got %s", ErrBadPayload, v.Type)
	}
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty menu id", ErrBadPayload)
	}
	return s, nil
}

func replyPayload(err error) []byte {
	if err == nil {
		return []byte("ok")
	}
	return []byte("error: " + err.Error())
}
