package datasource

import "strings"

// RewritePositional replaces each `?` placeholder outside string literals
// with the dialect-specific placeholder for its 1-based position, e.g.
// `$1`/`$2` for Postgres or `@p1`/`@p2` for SQL Server. Returns the rewritten
// query and the number of placeholders found.
func RewritePositional(query string, placeholder func(pos int) string) (string, int) {
	var out strings.Builder
	out.Grow(len(query))

	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)
	state := stateNormal
	pos := 0

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch state {
		case stateNormal:
			switch ch {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			case '?':
				pos++
				out.WriteString(placeholder(pos))
				continue
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
		out.WriteByte(ch)
	}

	return out.String(), pos
}

// RewriteNamed replaces each `:name` placeholder outside string literals with
// the dialect-specific form returned by placeholder. Double colons (Postgres
// casts) are left untouched. Returns the rewritten query and the parameter
// names in order of appearance, repeats included.
func RewriteNamed(query string, placeholder func(name string) string) (string, []string) {
	var out strings.Builder
	out.Grow(len(query))

	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)
	state := stateNormal
	var names []string

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
					break
				}
				if i+1 < len(query) && query[i+1] == ':' {
					out.WriteString("::")
					i++
					continue
				}
				start := i + 1
				end := start
				for end < len(query) && isIdentByte(query[end], end > start) {
					end++
				}
				if end > start && isIdentStartByte(query[start]) {
					name := query[start:end]
					names = append(names, name)
					out.WriteString(placeholder(name))
					i = end - 1
					continue
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
		out.WriteByte(ch)
	}

	return out.String(), names
}

func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentByte(b byte, notFirst bool) bool {
	if isIdentStartByte(b) {
		return true
	}
	return notFirst && b >= '0' && b <= '9'
}
