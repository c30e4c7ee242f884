package menucache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultNamespace prefixes every key the cache owns.
const DefaultNamespace = "menucache"

// DefaultIgnoreArgs are per-request args that never affect output.
var DefaultIgnoreArgs = []string{"nonce", "timestamp", "request_id", "_"}

// Keyer derives cache keys from render requests.
//
// Contract:
//   - Determinism: equal menu, variant and cache-relevant args give equal keys,
//     regardless of map order or which hook supplied the args.
//   - Every key for a menu starts with MenuPrefix(menu); every key starts
//     with NamespacePrefix().
//   - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(req Request) (string, error)
	MenuPrefix(menu string) string
	NamespacePrefix() string
}

// KeyerConfig configures NewKeyer.
type KeyerConfig struct {
	// Namespace separates these keys from other data in a shared store.
	// Default: DefaultNamespace.
	Namespace string

	// IgnoreArgs are dropped before hashing, in addition to echo, menu and
	// NoCacheArg. Nil means DefaultIgnoreArgs; an empty non-nil slice ignores
	// nothing extra.
	IgnoreArgs []string

	// NoCacheArg is the per-call escape hatch, never part of a key.
	// Default: DefaultNoCacheArg.
	NoCacheArg string
}

// DefaultKeyer hashes canonical JSON of the cache-relevant request fields.
// Key format: <namespace>.<menu>.<hash>, where hash is the first 16 bytes
// of SHA-256 in hex.
type DefaultKeyer struct {
	namespace string
	ignore    map[string]struct{}
}

// NewKeyer creates a keyer. The namespace must match the menu id syntax so
// that prefixes of different namespaces and menus never overlap.
func NewKeyer(cfg KeyerConfig) (*DefaultKeyer, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	if !ValidMenuID(ns) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}

	ignoreList := cfg.IgnoreArgs
	if ignoreList == nil {
		ignoreList = DefaultIgnoreArgs
	}
	noCache := cfg.NoCacheArg
	if noCache == "" {
		noCache = DefaultNoCacheArg
	}
	ignore := map[string]struct{}{"echo": {}, "menu": {}, noCache: {}}
	for _, name := range ignoreList {
		ignore[name] = struct{}{}
	}

	return &DefaultKeyer{namespace: ns, ignore: ignore}, nil
}

// Key derives the cache key for req.
func (k *DefaultKeyer) Key(req Request) (string, error) {
	if !ValidMenuID(req.Menu) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMenu, req.Menu)
	}

	args, err := Normalize(req.Args)
	if err != nil {
		return "", err
	}
	for name := range k.ignore {
		delete(args, name)
	}

	canonical, err := canonicalize(map[string]any{
		"menu":    req.Menu,
		"variant": req.Variant,
		"args":    map[string]any(args),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnserializable, err)
	}

	sum := sha256.Sum256(canonical)
	return k.MenuPrefix(req.Menu) + hex.EncodeToString(sum[:16]), nil
}

// MenuPrefix returns the prefix shared by every key of menu.
func (k *DefaultKeyer) MenuPrefix(menu string) string {
	return k.namespace + "." + menu + "."
}

// NamespacePrefix returns the prefix shared by every key.
func (k *DefaultKeyer) NamespacePrefix() string {
	return k.namespace + "."
}

// Namespace returns the configured namespace.
func (k *DefaultKeyer) Namespace() string {
	return k.namespace
}

// canonicalize produces deterministic JSON: object keys sorted at every level.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

var _ Keyer = (*DefaultKeyer)(nil)
