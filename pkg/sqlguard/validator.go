// Package sqlguard decides whether administrator-authored detail SQL may ever
// be stored or executed.
package sqlguard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vendacrm/venda-engine/pkg/apperrors"
)

// MaxQueryLength is the hard cap on the length of a detail SQL template.
const MaxQueryLength = 5000

// blockedKeywords are rejected anywhere in the query as a case-insensitive
// substring. This is deliberately conservative: it can reject legitimate
// SELECTs whose identifiers contain one of these fragments, and it is not a
// SQL parser. The accepted/rejected sets are load-bearing; do not swap this
// for a smarter parser.
var blockedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE",
	"EXEC", "EXECUTE", "CALL", "DECLARE", "GRANT", "REVOKE", "COMMIT",
	"ROLLBACK", "SAVEPOINT", "SET", "SHOW", "DESCRIBE", "EXPLAIN", "USE",
	"LOAD", "OUTFILE", "INFILE", "BACKUP", "RESTORE", "HANDLER", "PREPARE",
	"DEALLOCATE", "RESET", "PURGE", "FLUSH", "KILL",
}

// IsSafe reports whether the detail SQL template passes every safety rule.
// Pure and deterministic.
func IsSafe(query string) bool {
	return Validate(query) == nil
}

// Validate applies the safety rules in order and returns the first failure
// wrapped in apperrors.ErrUnsafeQuery, or nil when the template is acceptable.
//
// Rules:
//  1. non-empty, at most MaxQueryLength characters
//  2. trimmed text starts with SELECT (case-insensitive)
//  3. no blocklisted keyword anywhere as a substring
//  4. no SQL comment markers (--, /*, */)
//  5. if splitting on ';' yields multiple statements, each must start with SELECT
func Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query is empty", apperrors.ErrUnsafeQuery)
	}
	// The cap counts characters, not bytes; accented text in literals and
	// identifiers does not shrink it.
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", apperrors.ErrUnsafeQuery, MaxQueryLength)
	}

	upper := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("%w: only SELECT statements are allowed", apperrors.ErrUnsafeQuery)
	}

	for _, kw := range blockedKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("%w: contains blocked keyword %s", apperrors.ErrUnsafeQuery, kw)
		}
	}

	for _, marker := range []string{"--", "/*", "*/"} {
		if strings.Contains(query, marker) {
			return fmt.Errorf("%w: SQL comments are not allowed", apperrors.ErrUnsafeQuery)
		}
	}

	// Multi-statement templates: every non-empty statement must be a SELECT.
	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		trimmed := strings.ToUpper(strings.TrimSpace(stmt))
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "SELECT") {
			return fmt.Errorf("%w: every statement must start with SELECT", apperrors.ErrUnsafeQuery)
		}
	}

	return nil
}
