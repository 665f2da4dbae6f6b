// Package sqlbind maps clicked chart payloads onto the parameters of a
// drill-down detail query.
package sqlbind

// Style is the SQL placeholder dialect of a detail query template.
type Style int

const (
	// StylePositional uses `?` placeholders bound in declaration order.
	StylePositional Style = iota
	// StyleNamed uses `:name` placeholders bound by parameter name.
	StyleNamed
)

func (s Style) String() string {
	if s == StyleNamed {
		return "named"
	}
	return "positional"
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// DetectStyle scans the template for `:identifier` tokens outside string
// literals. Any such token means named style; otherwise the template is
// treated as positional. Double colons (Postgres casts) are not named
// parameters.
func DetectStyle(query string) Style {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch state {
		case stateNormal:
			switch ch {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case ':':
				if i > 0 && query[i-1] == ':' {
					continue
				}
				if i+1 < len(query) && query[i+1] == ':' {
					i++ // skip the cast
					continue
				}
				if i+1 < len(query) && isIdentStart(query[i+1]) {
					return StyleNamed
				}
			}
		case stateSingleQuote:
			if ch == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if ch == '"' {
				state = stateNormal
			}
		}
	}
	return StylePositional
}
