package menucache

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Args are the rendering arguments of one menu invocation, keyed by the
// host's argument names (container, menu_class, depth, theme_location, ...).
type Args map[string]any

// Request is one menu render.
type Request struct {
	// Menu is the stable menu id. Never a display name.
	Menu string `json:"menu"`

	// Args are the caller's rendering arguments, before or after host
	// defaults were merged. Both shapes normalize to the same form.
	Args Args `json:"args,omitempty"`

	// Variant names the per-visitor rendering context (for example the
	// current page bucket). It is part of the key.
	Variant string `json:"variant,omitempty"`

	// Personalized marks output that depends on the visitor in ways Variant
	// does not capture.
	Personalized bool `json:"personalized,omitempty"`
}

// DefaultArgs are the host renderer's defaults. Normalize merges them so the
// pre- and post-render hooks key the same shape.
var DefaultArgs = Args{
	"menu":                 "",
	"container":            "div",
	"container_class":      "",
	"container_id":         "",
	"container_aria_label": "",
	"menu_class":           "menu",
	"menu_id":              "",
	"echo":                 true,
	"fallback_cb":          "wp_page_menu",
	"before":               "",
	"after":                "",
	"link_before":          "",
	"link_after":           "",
	"items_wrap":           `<ul id="%1$s" class="%2$s">%3$s</ul>`,
	"item_spacing":         "preserve",
	"depth":                int64(0),
	"walker":               "",
	"theme_location":       "",
}

var menuIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidMenuID reports whether id can be used as a menu identity in keys.
func ValidMenuID(id string) bool {
	return menuIDPattern.MatchString(id)
}

// Normalize returns args merged over DefaultArgs in canonical form:
// integers become int64, integral floats become int64, depth is coerced to
// an integer, and a struct or pointer walker becomes a "type:<Go type>"
// token.
// A nil value counts as absent. Values with no stable serialized form yield
// ErrUnserializable. The input is not modified.
func Normalize(args Args) (Args, error) {
	out := make(Args, len(DefaultArgs)+len(args))
	for k, v := range DefaultArgs {
		out[k] = v
	}

	for k, v := range args {
		if v == nil {
			continue
		}
		var (
			nv  any
			err error
		)
		switch k {
		case "walker":
			nv, err = walkerToken(v)
		case "depth":
			nv, err = coerceDepth(v)
		default:
			nv, err = normalizeValue(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnserializable, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// walkerToken keeps serializable walkers (strings, numbers, maps naming a
// class) in canonical form. Structs and pointers are walker instances and
// collapse to their type.
func walkerToken(v any) (any, error) {
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, fmt.Errorf("unsupported walker kind %s", t.Kind())
	case reflect.Struct, reflect.Pointer:
		return "type:" + t.String(), nil
	}
	return normalizeValue(v)
}

// coerceDepth follows the host's integer cast: numeric strings parse,
// anything non-numeric is zero.
func coerceDepth(v any) (any, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return int64(0), nil
	}

	nv, err := normalizeValue(v)
	if err != nil {
		return nil, err
	}
	switch n := nv.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(math.MaxInt64), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("depth of type %T", v)
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return normalizeUint(uint64(x)), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return normalizeUint(x), nil
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return normalizeFloat(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			nv, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map with %s keys", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := normalizeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = nv
		}
		return out, nil

	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}

	return nil, fmt.Errorf("value of type %T", v)
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

// truthy follows form-value conventions: "", "0", "false", "no" and "off"
// are false, as are zero numbers.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "no", "off":
			return false
		}
		return true
	}
	return true
}
