package sqlbind

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vendacrm/venda-engine/pkg/apperrors"
	"github.com/vendacrm/venda-engine/pkg/models"
)

// Bound is the result of binding a clicked payload into a detail query.
// Exactly one of Positional/Named is populated, matching Style.
type Bound struct {
	Style      Style
	Positional []any
	Named      map[string]any
}

// tenantParamName is the reserved parameter name that always binds the
// authenticated tenant, never clicked data.
const tenantParamName = "client_id"

// Bind resolves each declared parameter of the mapping against the clicked
// payload and returns values in the shape the template's placeholder style
// requires.
//
// The tenant-isolation guarantee lives here: a parameter named client_id is
// always bound to tenantID, even when the clicked payload carries a field of
// the same name. Fields absent from the payload bind as nil.
func Bind(query string, mapping models.ParamMapping, clicked map[string]any, tenantID int64) (*Bound, error) {
	style := DetectStyle(query)

	if style == StyleNamed && mapping.Sequence {
		return nil, fmt.Errorf("%w: named placeholders require an object parameter mapping, got a sequence",
			apperrors.ErrBinding)
	}

	bound := &Bound{Style: style}
	if style == StyleNamed {
		bound.Named = make(map[string]any, len(mapping.Pairs))
	} else {
		bound.Positional = make([]any, 0, len(mapping.Pairs))
	}

	for _, pair := range mapping.Pairs {
		var value any
		if pair.Name == tenantParamName {
			value = tenantID
		} else {
			value = clicked[pair.Field]
			if isDateParam(pair.Name, pair.Field) {
				value = normalizeDate(value)
			}
		}

		if style == StyleNamed {
			bound.Named[pair.Name] = value
		} else {
			bound.Positional = append(bound.Positional, value)
		}
	}

	return bound, nil
}

// isDateParam reports whether either side of the mapping names a date-like
// field. The clicked payload is untyped, so naming is the only signal.
func isDateParam(paramName, fieldName string) bool {
	for _, name := range []string{paramName, fieldName} {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "date") || strings.Contains(lower, "data") {
			return true
		}
	}
	return false
}

// normalizeDate truncates date-like values to YYYY-MM-DD. Values already
// carrying a '-' are assumed to be calendar dates (or ISO timestamps the data
// source can coerce) and pass through unchanged. Epoch numbers and dd/mm/yyyy
// strings are converted; anything unparseable passes through as-is.
func normalizeDate(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.Format("2006-01-02")
	case string:
		if strings.Contains(v, "-") {
			return v
		}
		if t, ok := parseLooseDate(v); ok {
			return t.Format("2006-01-02")
		}
		return v
	case int64:
		return epochToDate(v)
	case int:
		return epochToDate(int64(v))
	case float64:
		return epochToDate(int64(v))
	default:
		return value
	}
}

func parseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochTime(n), true
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func epochToDate(n int64) string {
	return epochTime(n).Format("2006-01-02")
}

// epochTime treats values past the year-5000 second range as milliseconds.
func epochTime(n int64) time.Time {
	const msThreshold = 100_000_000_000
	if n > msThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
