package secret

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ExpandEnvStrict expands $VAR and ${VAR} in s from the environment.
//
// Unlike os.ExpandEnv, a braced reference to an unset variable is an error
// naming every missing variable, so a typo in a DSN fails at startup rather
// than connecting with an empty password. A bare $VAR that is unset expands
// to "". "$$" yields a literal "$".
func ExpandEnvStrict(s string) (string, error) {
	var missing []string
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			name := ""
			if end >= 0 {
				name = s[i+2 : i+2+end]
			}
			if !validEnvName(name) {
				b.WriteByte('$')
				continue
			}
			v, ok := os.LookupEnv(name)
			if !ok && !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			b.WriteString(v)
			i += 2 + end
		case isEnvStart(next):
			j := i + 2
			for j < len(s) && isEnvChar(s[j]) {
				j++
			}
			b.WriteString(os.Getenv(s[i+1 : j]))
			i = j - 1
		default:
			b.WriteByte('$')
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return b.String(), nil
}

func validEnvName(name string) bool {
	if name == "" || !isEnvStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isEnvChar(name[i]) {
			return false
		}
	}
	return true
}

func isEnvStart(c byte) bool {
	return c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isEnvChar(c byte) bool {
	return isEnvStart(c) || '0' <= c && c <= '9'
}
