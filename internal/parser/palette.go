package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// gazeboColors maps the fixed vocabulary of Gazebo material names to display
// colors. It is consulted only as a fallback, when a link has no inline or
// named material of its own.
var gazeboColors = map[string]string{
	"Gazebo/Red":       "#ff0000",
	"Gazebo/Green":     "#00ff00",
	"Gazebo/Blue":      "#0000ff",
	"Gazebo/Yellow":    "#ffff00",
	"Gazebo/Orange":    "#ff8800",
	"Gazebo/Purple":    "#800080",
	"Gazebo/Turquoise": "#40e0d0",
	"Gazebo/White":     "#ffffff",
	"Gazebo/Black":     "#000000",
	"Gazebo/Grey":      "#808080",
	"Gazebo/Gray":      "#808080",
	"Gazebo/DarkGrey":  "#404040",
	"Gazebo/LightGrey": "#c0c0c0",
	"Gazebo/Gold":      "#ffd700",
	"Gazebo/Silver":    "#c0c0c0",
	"Gazebo/Wood":      "#8b5a2b",
}

// Palette resolves simulator material names to hex colors. User-supplied
// entries take precedence over the built-in Gazebo table.
type Palette struct {
	Colors map[string]string `yaml:"colors"`
}

// ParsePaletteFromBytes parses a YAML palette file of the form:
//
//	colors:
//	  Gazebo/Red: "#cc0000"
//	  MyRobot/Shell: "#1f77b4"
//
// Entries whose value is not a #rrggbb string are rejected.
func ParsePaletteFromBytes(data []byte) (*Palette, error) {
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid palette YAML: %w", err)
	}
	for name, hex := range p.Colors {
		if !validHexColor(hex) {
			return nil, fmt.Errorf("palette entry %s: %q is not a #rrggbb color", name, hex)
		}
	}
	return &p, nil
}

// Lookup resolves a material name, checking user entries before the built-in
// table.
func (p *Palette) Lookup(name string) (string, bool) {
	if p != nil {
		if hex, ok := p.Colors[name]; ok {
			return hex, true
		}
	}
	hex, ok := gazeboColors[name]
	return hex, ok
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range strings.ToLower(s[1:]) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
