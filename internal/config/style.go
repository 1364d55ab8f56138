package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Map overlay modes.
const (
	MapModePlain = "plain"
	MapModeOff   = "off"
)

// PlotStyle enumerates plot sizes, palettes and the map overlay mode.
type PlotStyle struct {
	Width   int            `yaml:"plot_width" json:"plotWidth"`
	Heights map[string]int `yaml:"plot_height" json:"plotHeight"`

	Colors2      []string `yaml:"colors2" json:"colors2"`
	Colors3      []string `yaml:"colors3" json:"colors3"`
	Colors8      []string `yaml:"colors8" json:"colors8"`
	Colors8Extra []string `yaml:"colors8_extra" json:"colors8Extra"`
	ColorGray    string   `yaml:"color_gray" json:"colorGray"`

	MapMode string `yaml:"map_mode" json:"mapMode"`
}

// DefaultPlotStyle returns the built-in style.
func DefaultPlotStyle() *PlotStyle {
	return &PlotStyle{
		Width: 840,
		Heights: map[string]int{
			"small":  220,
			"normal": 300,
			"large":  550,
		},
		Colors2: []string{"#0072b2", "#e69f00"},
		Colors3: []string{"#e0212d", "#208900", "#0062ff"},
		Colors8: []string{
			"#e0212d", "#208900", "#0062ff", "#ff8c00",
			"#9467bd", "#17becf", "#8c564b", "#e377c2",
		},
		Colors8Extra: []string{
			"#ff9896", "#98df8a", "#aec7e8", "#ffbb78",
			"#c5b0d5", "#9edae5", "#c49c94", "#f7b6d2",
		},
		ColorGray: "#464646",
		MapMode:   MapModePlain,
	}
}

// Height returns the pixel height for a height class, falling back to "normal".
func (s *PlotStyle) Height(class string) int {
	if h, ok := s.Heights[class]; ok {
		return h
	}
	return s.Heights["normal"]
}

// MinColors8 is the smallest colors8 palette the chart catalogue can use:
// the altitude and power charts each take three distinct entries.
const MinColors8 = 3

// Validate checks that the palettes are usable for dual-log charts.
func (s *PlotStyle) Validate() error {
	if s.Width <= 0 {
		return fmt.Errorf("plot_width must be positive")
	}
	if len(s.Colors2) < 2 || len(s.Colors3) < 3 || len(s.Colors8Extra) == 0 {
		return fmt.Errorf("palettes are incomplete")
	}
	if len(s.Colors8) < MinColors8 {
		return fmt.Errorf("colors8 needs at least %d colors, got %d", MinColors8, len(s.Colors8))
	}
	primary := make(map[string]struct{}, len(s.Colors8))
	for _, c := range s.Colors8 {
		primary[c] = struct{}{}
	}
	for _, c := range s.Colors8Extra {
		if _, ok := primary[c]; ok {
			return fmt.Errorf("colors8 and colors8_extra share color %s", c)
		}
	}
	if s.Colors3[0] == s.Colors3[2] {
		return fmt.Errorf("colors3 must use distinct colors for each log")
	}
	switch s.MapMode {
	case MapModePlain, MapModeOff:
	default:
		return fmt.Errorf("unknown map_mode: %q", s.MapMode)
	}
	return nil
}

// LoadPlotStyle reads a YAML style file. An empty path yields the defaults.
func LoadPlotStyle(path string) (*PlotStyle, error) {
	if path == "" {
		return DefaultPlotStyle(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plot style: %w", err)
	}
	defer f.Close()
	return ParsePlotStyle(f)
}

// ParsePlotStyle parses a style from r. Keys absent from the document keep
// their default values.
func ParsePlotStyle(r io.Reader) (*PlotStyle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	style := DefaultPlotStyle()
	if err := yaml.Unmarshal(data, style); err != nil {
		return nil, fmt.Errorf("parsing plot style: %w", err)
	}
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plot style: %w", err)
	}
	return style, nil
}
