// Package display shapes raw drill-down result rows for the generic detail
// grid: type-directed cell formatting plus optional hyperlink synthesis.
package display

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vendacrm/venda-engine/pkg/models"
)

// Format returns display-ready copies of rows. For each declared column whose
// type has a formatter, the cell value is replaced by the formatted form; nil
// cells and text/number/unrecognized types pass through unchanged. When
// linkCfg is non-nil, rows with a non-empty link column gain synthesized
// _link and _linkText cells.
func Format(rows []map[string]any, columns []models.GridColumn, linkCfg *models.LinkConfig) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		formatted := make(map[string]any, len(row)+2)
		for k, v := range row {
			formatted[k] = v
		}

		for _, col := range columns {
			value, present := formatted[col.Field]
			if !present || value == nil {
				continue
			}
			formatted[col.Field] = formatCell(col.Type, value)
		}

		if linkCfg != nil {
			synthesizeLink(formatted, linkCfg)
		}

		out = append(out, formatted)
	}
	return out
}

func formatCell(colType models.ColumnType, value any) any {
	switch colType {
	case models.ColumnCurrency:
		return formatCurrency(value)
	case models.ColumnDate:
		return formatDate(value)
	case models.ColumnDatetime:
		return formatDatetime(value)
	case models.ColumnPhone:
		return FormatPhone(toString(value))
	case models.ColumnEmail:
		return strings.ToLower(toString(value))
	case models.ColumnBadge:
		return FormatBadge(toString(value))
	default:
		// text, number, and anything unrecognized pass through.
		return value
	}
}

func synthesizeLink(row map[string]any, cfg *models.LinkConfig) {
	value, ok := row[cfg.Column]
	if !ok || value == nil {
		return
	}
	text := toString(value)
	if text == "" {
		return
	}

	row["_link"] = strings.ReplaceAll(cfg.Template, "{"+cfg.Column+"}", text)

	linkText := text
	if cfg.TextColumn != "" {
		if tv, ok := row[cfg.TextColumn]; ok && tv != nil {
			linkText = toString(tv)
		}
	}
	row["_linkText"] = linkText
}

// formatCurrency renders a numeric value as Brazilian Reais, e.g. 1234.5 →
// "R$ 1.234,50". Non-numeric values pass through unchanged.
func formatCurrency(value any) any {
	f, ok := toFloat(value)
	if !ok {
		return value
	}

	negative := f < 0
	f = math.Abs(f)

	cents := int64(math.Round(f * 100))
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), frac)
}

func formatDate(value any) any {
	t, ok := toTime(value)
	if !ok {
		return value
	}
	return t.Format("02/01/2006")
}

func formatDatetime(value any) any {
	t, ok := toTime(value)
	if !ok {
		return value
	}
	return t.Format("02/01/2006 15:04")
}

// FormatPhone reformats Brazilian phone numbers: 10 digits →
// (DD) NNNN-NNNN, 11 digits → (DD) NNNNN-NNNN. Anything else passes through.
func FormatPhone(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch len(d) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", d[0:2], d[2:6], d[6:10])
	case 11:
		return fmt.Sprintf("(%s) %s-%s", d[0:2], d[2:7], d[7:11])
	default:
		return value
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
