package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretNotFound is returned when a provider has no value for a ref.
var ErrSecretNotFound = errors.New("secret: not found")

// Provider resolves secret references for one scheme. Implementations must
// be safe for concurrent use and must never log resolved values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves refs as environment variable names.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an env provider. A non-empty prefix is prepended to
// every ref, so "DSN" with prefix "MENUCACHE_" reads MENUCACHE_DSN.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve reads the variable named prefix+ref.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	name := p.prefix + ref
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves refs as file paths. Relative refs are joined to dir.
// Trailing newlines are trimmed from the file contents.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file provider rooted at dir ("" means the
// working directory).
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads the file at ref.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if !filepath.IsAbs(path) && p.dir != "" {
		path = filepath.Join(p.dir, path)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// Close is a no-op.
func (p *FileProvider) Close() error { return nil }

func stringOpt(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret: option %q must be a string, got %T", key, v)
	}
	return s, nil
}

func init() {
	_ = DefaultRegistry.Register("env", func(cfg map[string]any) (Provider, error) {
		prefix, err := stringOpt(cfg, "prefix")
		if err != nil {
			return nil, err
		}
		return NewEnvProvider(prefix), nil
	})
	_ = DefaultRegistry.Register("file", func(cfg map[string]any) (Provider, error) {
		dir, err := stringOpt(cfg, "dir")
		if err != nil {
			return nil, err
		}
		return NewFileProvider(dir), nil
	})
}
