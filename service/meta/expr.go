package meta

import (
	"os"
	"strings"
)

const envExprPrefix = "${env."

// expandEnvExpr substitutes every well-formed ${env.KEY} occurrence with the
// value of the KEY environment variable.  Unset keys expand to the empty
// string, malformed expressions stay literal.
func expandEnvExpr(value string) string {
	if !strings.Contains(value, envExprPrefix) {
		return value
	}
	var out strings.Builder
	rest := value
	for {
		idx := strings.Index(rest, envExprPrefix)
		if idx < 0 {
			out.WriteString(rest)
			return out.String()
		}
		out.WriteString(rest[:idx])
		rest = rest[idx+len(envExprPrefix):]

		end := strings.IndexByte(rest, '}')
		if end < 0 {
			// unterminated, keep the tail as written
			out.WriteString(envExprPrefix)
			out.WriteString(rest)
			return out.String()
		}
		key := rest[:end]
		if !validEnvKey(key) {
			// keep the prefix literal and rescan the remainder, a later
			// expression may still follow
			out.WriteString(envExprPrefix)
			continue
		}
		out.WriteString(os.Getenv(key))
		rest = rest[end+1:]
	}
}

func validEnvKey(key string) bool {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
