// Package cachetest checks cache.Cache implementations against the store contract.
package cachetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/theo-gk/wordpress-menu-caching/cache"
)

// Factory returns an empty cache for one subtest.
type Factory func(t *testing.T) cache.Cache

// Run exercises the contract shared by every store: round trip, miss,
// idempotent delete, zero-TTL writes and prefix isolation.
func Run(t *testing.T, newCache Factory) {
	t.Helper()

	t.Run("miss is not an error", func(t *testing.T) {
		c := newCache(t)
		val, ok, err := c.Get(context.Background(), "menucache.primary.absent")
		if err != nil || ok || val != nil {
			t.Fatalf("Get(absent) = %q, %v, %v; want nil, false, nil", val, ok, err)
		}
	})

	t.Run("round trip is byte exact", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		markup := []byte("<ul id=\"menu-primary\" class=\"menu\"><li>Ü &amp; ✓</li></ul>\n")

		if err := c.Set(ctx, "menucache.primary.k1", markup, cache.Forever); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, ok, err := c.Get(ctx, "menucache.primary.k1")
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v; want hit", ok, err)
		}
		if !bytes.Equal(got, markup) {
			t.Errorf("Get() = %q, want %q", got, markup)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		mustSet(t, c, "menucache.primary.k1", "old")
		mustSet(t, c, "menucache.primary.k1", "new")

		got, _, _ := c.Get(ctx, "menucache.primary.k1")
		if string(got) != "new" {
			t.Errorf("Get() = %q, want last write", got)
		}
	})

	t.Run("zero ttl stores nothing", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		if err := c.Set(ctx, "menucache.primary.k1", []byte("x"), 0); err != nil {
			t.Fatalf("Set(ttl=0) error = %v", err)
		}
		if _, ok, _ := c.Get(ctx, "menucache.primary.k1"); ok {
			t.Error("ttl=0 write should not be readable")
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		mustSet(t, c, "menucache.primary.k1", "x")

		for i := 0; i < 2; i++ {
			if err := c.Delete(ctx, "menucache.primary.k1"); err != nil {
				t.Fatalf("Delete() #%d error = %v", i+1, err)
			}
		}
		if err := c.Delete(ctx, "menucache.never.set"); err != nil {
			t.Errorf("Delete(absent) error = %v", err)
		}
		if _, ok, _ := c.Get(ctx, "menucache.primary.k1"); ok {
			t.Error("deleted key still readable")
		}
	})

	t.Run("delete prefix is scoped", func(t *testing.T) {
		c := newCache(t)
		ctx := context.Background()
		mustSet(t, c, "menucache.primary.k1", "a")
		mustSet(t, c, "menucache.primary.k2", "b")
		mustSet(t, c, "menucache.primary2.k1", "c")
		mustSet(t, c, "menucache.footer.k1", "d")
		mustSet(t, c, "other.primary.k1", "e")

		n, err := c.DeletePrefix(ctx, "menucache.primary.")
		if err != nil {
			t.Fatalf("DeletePrefix() error = %v", err)
		}
		if n != 2 {
			t.Errorf("DeletePrefix() removed %d, want 2", n)
		}

		for key, want := range map[string]bool{
			"menucache.primary.k1":  false,
			"menucache.primary.k2":  false,
			"menucache.primary2.k1": true,
			"menucache.footer.k1":   true,
			"other.primary.k1":      true,
		} {
			if _, ok, _ := c.Get(ctx, key); ok != want {
				t.Errorf("after DeletePrefix, %s present = %v, want %v", key, ok, want)
			}
		}

		n, err = c.DeletePrefix(ctx, "menucache.")
		if err != nil || n != 2 {
			t.Errorf("namespace DeletePrefix() = %d, %v; want 2, nil", n, err)
		}
		if _, ok, _ := c.Get(ctx, "other.primary.k1"); !ok {
			t.Error("keys outside the namespace must survive a namespace purge")
		}
	})

	t.Run("delete prefix with nothing to delete", func(t *testing.T) {
		c := newCache(t)
		n, err := c.DeletePrefix(context.Background(), "menucache.")
		if err != nil || n != 0 {
			t.Errorf("DeletePrefix(empty store) = %d, %v; want 0, nil", n, err)
		}
	})

	t.Run("empty prefix rejected", func(t *testing.T) {
		c := newCache(t)
		if _, err := c.DeletePrefix(context.Background(), ""); !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("DeletePrefix(\"\") error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		c := newCache(t)
		err := c.Set(context.Background(), "", []byte("x"), time.Minute)
		if !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("Set(\"\") error = %v, want ErrInvalidKey", err)
		}
	})
}

func mustSet(t *testing.T, c cache.Cache, key, value string) {
	t.Helper()
	if err := c.Set(context.Background(), key, []byte(value), cache.Forever); err != nil {
		t.Fatalf("Set(%s) error = %v", key, err)
	}
}
