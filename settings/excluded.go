package settings

import (
	"encoding/json"
	"sort"
	"strings"
)

// ExcludedSet is an immutable set of menu ids for which caching is disabled.
// The zero value is an empty set.
type ExcludedSet struct {
	ids map[string]struct{}
}

// NewExcludedSet builds a set from ids. Surrounding whitespace is trimmed,
// blanks are dropped and duplicates collapse.
func NewExcludedSet(ids ...string) ExcludedSet {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		m[id] = struct{}{}
	}
	return ExcludedSet{ids: m}
}

// Contains reports whether menu is excluded.
func (s ExcludedSet) Contains(menu string) bool {
	_, ok := s.ids[menu]
	return ok
}

// IDs returns the excluded ids in sorted order.
func (s ExcludedSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of excluded menus.
func (s ExcludedSet) Len() int {
	return len(s.ids)
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s ExcludedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes a JSON array of ids. Numeric ids are accepted,
// since older option rows stored them as numbers.
func (s *ExcludedSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			ids = append(ids, str)
			continue
		}
		var num json.Number
		if err := json.Unmarshal(r, &num); err != nil {
			return err
		}
		ids = append(ids, num.String())
	}

	*s = NewExcludedSet(ids...)
	return nil
}
