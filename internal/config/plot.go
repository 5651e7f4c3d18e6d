package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/muograph/muograph/internal/units"
)

// DefaultConfigPath is the path to the canonical plot theme defaults file.
const DefaultConfigPath = "config/plot.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// KnownColormaps lists the colormap names accepted by Cmap (each may also
// carry an "_r" suffix for the reversed map).
var KnownColormaps = []string{"jet", "viridis", "gray", "coolwarm", "hot"}

// PlotConfig is the plot theme shared by every figure. Fields are pointers so
// partial files only override what they set; the Get* accessors supply the
// defaults for anything left nil.
type PlotConfig struct {
	FontSize  *float64 `json:"font_size,omitempty" yaml:"font_size,omitempty" toml:"font_size,omitempty"`
	LabelSize *float64 `json:"label_size,omitempty" yaml:"label_size,omitempty" toml:"label_size,omitempty"`
	TitleSize *float64 `json:"title_size,omitempty" yaml:"title_size,omitempty" toml:"title_size,omitempty"`

	// Distance unit used in axis labels: mm, cm or m.
	DistanceUnit *string `json:"distance_unit,omitempty" yaml:"distance_unit,omitempty" toml:"distance_unit,omitempty"`

	// Figure scale in inches per subplot.
	Scale *float64 `json:"scale,omitempty" yaml:"scale,omitempty" toml:"scale,omitempty"`

	Cmap        *string `json:"cmap,omitempty" yaml:"cmap,omitempty" toml:"cmap,omitempty"`
	ReverseCmap *bool   `json:"reverse_cmap,omitempty" yaml:"reverse_cmap,omitempty" toml:"reverse_cmap,omitempty"`

	NBins      *int     `json:"n_bins,omitempty" yaml:"n_bins,omitempty" toml:"n_bins,omitempty"`
	HistWidth  *float64 `json:"hist_width,omitempty" yaml:"hist_width,omitempty" toml:"hist_width,omitempty"`
	HistHeight *float64 `json:"hist_height,omitempty" yaml:"hist_height,omitempty" toml:"hist_height,omitempty"`

	// Columns of the slice grid figure.
	NCols *int `json:"n_cols,omitempty" yaml:"n_cols,omitempty" toml:"n_cols,omitempty"`

	// Series colours as hex strings, cycled by profile plots.
	Colors []string `json:"colors,omitempty" yaml:"colors,omitempty" toml:"colors,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPlotConfig returns a PlotConfig with every field nil.
func EmptyPlotConfig() *PlotConfig {
	return &PlotConfig{}
}

// DefaultPlotConfig returns a PlotConfig with every field set to its default.
func DefaultPlotConfig() *PlotConfig {
	return &PlotConfig{
		FontSize:     ptrFloat64(12),
		LabelSize:    ptrFloat64(10),
		TitleSize:    ptrFloat64(14),
		DistanceUnit: ptrString(units.MM),
		Scale:        ptrFloat64(3),
		Cmap:         ptrString("jet"),
		ReverseCmap:  ptrBool(false),
		NBins:        ptrInt(50),
		HistWidth:    ptrFloat64(6),
		HistHeight:   ptrFloat64(4),
		NCols:        ptrInt(4),
		Colors:       append([]string(nil), defaultColors...),
	}
}

var defaultColors = []string{"#1f77b4", "#d62728", "#2ca02c", "#ff7f0e", "#9467bd", "#8c564b"}

// LoadPlotConfig loads a PlotConfig from a .json, .yaml/.yml or .toml file
// of at most 1MB. Unknown keys are rejected for JSON and TOML.
func LoadPlotConfig(path string) (*PlotConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .toml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParsePlotConfig(data, ext)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParsePlotConfig decodes data in the format named by ext (".json", ".yaml",
// ".yml" or ".toml") without validating it.
func ParsePlotConfig(data []byte, ext string) (*PlotConfig, error) {
	cfg := EmptyPlotConfig()
	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repo root. Panics if the file cannot be loaded; meant
// for tests and the CLI fallback.
func MustLoadDefaultConfig() *PlotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPlotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath)
}

// Validate checks that every set field is in range.
func (c *PlotConfig) Validate() error {
	for name, v := range map[string]*float64{
		"font_size":   c.FontSize,
		"label_size":  c.LabelSize,
		"title_size":  c.TitleSize,
		"scale":       c.Scale,
		"hist_width":  c.HistWidth,
		"hist_height": c.HistHeight,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, *v)
		}
	}
	if c.NBins != nil && *c.NBins < 1 {
		return fmt.Errorf("n_bins must be at least 1, got %d", *c.NBins)
	}
	if c.NCols != nil && *c.NCols < 1 {
		return fmt.Errorf("n_cols must be at least 1, got %d", *c.NCols)
	}
	if c.DistanceUnit != nil && !units.IsValid(*c.DistanceUnit) {
		return fmt.Errorf("distance_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.DistanceUnit)
	}
	if c.Cmap != nil && !IsKnownColormap(*c.Cmap) {
		return fmt.Errorf("unknown cmap %q (known: %s)", *c.Cmap, strings.Join(KnownColormaps, ", "))
	}
	for i, col := range c.Colors {
		if !isHexColor(col) {
			return fmt.Errorf("colors[%d]: %q is not a #rrggbb colour", i, col)
		}
	}
	return nil
}

// IsKnownColormap reports whether name, with an optional "_r" suffix, is in
// KnownColormaps.
func IsKnownColormap(name string) bool {
	base := strings.TrimSuffix(name, "_r")
	for _, k := range KnownColormaps {
		if base == k {
			return true
		}
	}
	return false
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// GetFontSize returns the font_size value or the default.
func (c *PlotConfig) GetFontSize() float64 {
	if c.FontSize == nil {
		return 12
	}
	return *c.FontSize
}

// GetLabelSize returns the label_size value or the default.
func (c *PlotConfig) GetLabelSize() float64 {
	if c.LabelSize == nil {
		return 10
	}
	return *c.LabelSize
}

// GetTitleSize returns the title_size value or the default.
func (c *PlotConfig) GetTitleSize() float64 {
	if c.TitleSize == nil {
		return 14
	}
	return *c.TitleSize
}

// GetDistanceUnit returns the distance_unit value or the default.
func (c *PlotConfig) GetDistanceUnit() string {
	if c.DistanceUnit == nil || *c.DistanceUnit == "" {
		return units.MM
	}
	return *c.DistanceUnit
}

// GetScale returns the scale value or the default.
func (c *PlotConfig) GetScale() float64 {
	if c.Scale == nil {
		return 3
	}
	return *c.Scale
}

// GetCmap returns the colormap name, with "_r" appended when reverse_cmap
// is set and the name is not already reversed.
func (c *PlotConfig) GetCmap() string {
	name := "jet"
	if c.Cmap != nil && *c.Cmap != "" {
		name = *c.Cmap
	}
	if c.ReverseCmap != nil && *c.ReverseCmap && !strings.HasSuffix(name, "_r") {
		name += "_r"
	}
	return name
}

// GetNBins returns the n_bins value or the default.
func (c *PlotConfig) GetNBins() int {
	if c.NBins == nil {
		return 50
	}
	return *c.NBins
}

// GetHistSize returns the histogram figure size in inches.
func (c *PlotConfig) GetHistSize() (w, h float64) {
	w, h = 6, 4
	if c.HistWidth != nil {
		w = *c.HistWidth
	}
	if c.HistHeight != nil {
		h = *c.HistHeight
	}
	return w, h
}

// GetNCols returns the n_cols value or the default.
func (c *PlotConfig) GetNCols() int {
	if c.NCols == nil {
		return 4
	}
	return *c.NCols
}

// GetColors returns the series colours or the default palette.
func (c *PlotConfig) GetColors() []string {
	if len(c.Colors) == 0 {
		return append([]string(nil), defaultColors...)
	}
	return append([]string(nil), c.Colors...)
}
