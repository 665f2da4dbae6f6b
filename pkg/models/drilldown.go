package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ModalSize controls how the detail grid modal is rendered by the front end.
type ModalSize string

const (
	ModalSmall      ModalSize = "small"
	ModalMedium     ModalSize = "medium"
	ModalLarge      ModalSize = "large"
	ModalFullscreen ModalSize = "fullscreen"
)

// ValidModalSize reports whether s is one of the supported modal sizes.
func ValidModalSize(s ModalSize) bool {
	switch s {
	case ModalSmall, ModalMedium, ModalLarge, ModalFullscreen:
		return true
	}
	return false
}

// ColumnType is the display type of a detail grid column.
type ColumnType string

const (
	ColumnText     ColumnType = "text"
	ColumnNumber   ColumnType = "number"
	ColumnEmail    ColumnType = "email"
	ColumnPhone    ColumnType = "phone"
	ColumnBadge    ColumnType = "badge"
	ColumnCurrency ColumnType = "currency"
	ColumnDate     ColumnType = "date"
	ColumnDatetime ColumnType = "datetime"
)

// GridColumn describes one column of the detail grid.
type GridColumn struct {
	Field string     `json:"field"`
	Title string     `json:"title"`
	Width int        `json:"width,omitempty"`
	Type  ColumnType `json:"type"`
}

// LinkConfig describes optional hyperlink synthesis on detail rows.
type LinkConfig struct {
	Column     string `json:"column"`
	Template   string `json:"template"`
	TextColumn string `json:"text_column,omitempty"`
}

// ParamPair maps one target query parameter to the clicked-data field that
// fills it.
type ParamPair struct {
	Name  string // target parameter name
	Field string // source field in the clicked payload
}

// ParamMapping is the ordered parameter mapping of a drill-down config.
//
// Admins store it as JSON in one of two shapes:
//
//	{"client_id": "client_id", "status": "status_field"}   object form
//	["client_id", "status_field"]                          sequence form
//
// The object form carries target parameter names and supports both named and
// positional placeholders. The sequence form only lists source fields in
// order, so it can serve positional placeholders exclusively: named
// placeholders cannot be resolved from it.
type ParamMapping struct {
	Pairs []ParamPair
	// Sequence is true when the stored JSON was an array rather than an
	// object. Named binding must reject sequence mappings.
	Sequence bool
}

// UnmarshalJSON accepts both stored shapes. For the object form, key order is
// preserved by walking the decoder token stream instead of unmarshalling into
// a Go map.
func (m *ParamMapping) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = ParamMapping{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var fields []string
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("param mapping sequence: %w", err)
		}
		pairs := make([]ParamPair, 0, len(fields))
		for _, f := range fields {
			pairs = append(pairs, ParamPair{Name: f, Field: f})
		}
		*m = ParamMapping{Pairs: pairs, Sequence: true}
		return nil

	case '{':
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil { // opening brace
			return fmt.Errorf("param mapping object: %w", err)
		}
		var pairs []ParamPair
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("param mapping key: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("param mapping key is not a string: %v", keyTok)
			}
			var field string
			if err := dec.Decode(&field); err != nil {
				return fmt.Errorf("param mapping value for %q must be a string: %w", key, err)
			}
			pairs = append(pairs, ParamPair{Name: key, Field: field})
		}
		*m = ParamMapping{Pairs: pairs}
		return nil
	}

	return fmt.Errorf("param mapping must be a JSON object or array, got %q", trimmed[0])
}

// MarshalJSON writes the object form (preserving order) unless the mapping
// was originally a sequence.
func (m ParamMapping) MarshalJSON() ([]byte, error) {
	if m.Sequence {
		fields := make([]string, 0, len(m.Pairs))
		for _, p := range m.Pairs {
			fields = append(fields, p.Field)
		}
		return json.Marshal(fields)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.Pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DrillDownConfig attaches a parameterized detail query to a dashboard chart
// slot. Owned by a tenant; mutated only through the config repository.
type DrillDownConfig struct {
	ID            uuid.UUID `json:"id"`
	ClientID      int64     `json:"client_id"`
	ChartPosition int       `json:"chart_position"`
	GroupID       *string   `json:"group_id,omitempty"`

	ChartTitle    string `json:"chart_title"`
	ChartSubtitle string `json:"chart_subtitle,omitempty"`
	XAxisField    string `json:"x_axis_field,omitempty"`
	YAxisField    string `json:"y_axis_field,omitempty"`

	DetailSQLQuery  string       `json:"detail_sql_query"`
	DetailSQLParams ParamMapping `json:"detail_sql_params"`

	DetailGridTitle   string       `json:"detail_grid_title"`
	DetailGridColumns []GridColumn `json:"detail_grid_columns"`

	DetailLinkColumn     string `json:"detail_link_column,omitempty"`
	DetailLinkTemplate   string `json:"detail_link_template,omitempty"`
	DetailLinkTextColumn string `json:"detail_link_text_column,omitempty"`

	ModalSize           ModalSize `json:"modal_size"`
	MaxResults          int       `json:"max_results"`
	QueryTimeoutSeconds int       `json:"query_timeout_seconds"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link returns the configured link synthesis, or nil when no link column is set.
func (c *DrillDownConfig) Link() *LinkConfig {
	if c.DetailLinkColumn == "" || c.DetailLinkTemplate == "" {
		return nil
	}
	return &LinkConfig{
		Column:     c.DetailLinkColumn,
		Template:   c.DetailLinkTemplate,
		TextColumn: c.DetailLinkTextColumn,
	}
}
