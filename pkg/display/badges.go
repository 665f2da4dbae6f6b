package display

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed badges.yaml
var badgePaletteYAML []byte

// Badge is the display form of a badge-typed cell.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type badgePalette struct {
	DefaultColor string            `yaml:"default_color"`
	Badges       map[string]string `yaml:"badges"`
}

var palette = mustLoadPalette()

func mustLoadPalette() badgePalette {
	var p badgePalette
	if err := yaml.Unmarshal(badgePaletteYAML, &p); err != nil {
		panic(fmt.Sprintf("display: invalid embedded badge palette: %v", err))
	}
	if p.DefaultColor == "" {
		p.DefaultColor = "gray"
	}
	return p
}

// FormatBadge maps a status value onto the fixed badge vocabulary,
// case-insensitively. Unknown values keep their original text with the
// default color.
func FormatBadge(value string) Badge {
	if color, ok := palette.Badges[strings.ToLower(strings.TrimSpace(value))]; ok {
		return Badge{Text: value, Color: color}
	}
	return Badge{Text: value, Color: palette.DefaultColor}
}
