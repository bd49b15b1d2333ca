package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"vessel-svr/internal/geo"
)

// Preset agrupa un punto de referencia y la región (bbox) suscrita al feed.
type Preset struct {
	Name      string    `yaml:"name" json:"name" validate:"required"`
	Label     string    `yaml:"label" json:"label,omitempty"`
	Reference geo.Point `yaml:"reference" json:"referencePoint"`
	BBox      geo.BBox  `yaml:"bbox" json:"boundingBox" validate:"dive"`
}

type presetsFile struct {
	Default string   `yaml:"default"`
	Presets []Preset `yaml:"presets" validate:"required,min=1,dive"`
}

// Presets es el conjunto de presets con nombre, con uno por defecto.
type Presets struct {
	byName  map[string]Preset
	Default string
}

// BuiltinPresets se usan cuando no hay PRESETS_FILE.
var BuiltinPresets = []Preset{
	{
		Name:      "savannah",
		Label:     "Port of Savannah",
		Reference: geo.Point{Lat: 32.0809, Lon: -81.0912},
		BBox:      geo.BBox{{Lat: 31.85, Lon: -81.35}, {Lat: 32.25, Lon: -80.70}},
	},
	{
		Name:      "tybee",
		Label:     "Tybee Roads / Savannah River entrance",
		Reference: geo.Point{Lat: 32.0225, Lon: -80.8442},
		BBox:      geo.BBox{{Lat: 31.70, Lon: -81.05}, {Lat: 32.20, Lon: -80.50}},
	},
}

var validate = validator.New()

// LoadPresets lee el YAML de presets; con path vacío usa los presets incluidos.
func LoadPresets(path, defaultName string) (*Presets, error) {
	list := BuiltinPresets
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets: %w", err)
		}
		var f presetsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse presets: %w", err)
		}
		if err := validate.Struct(f); err != nil {
			return nil, fmt.Errorf("invalid presets: %w", err)
		}
		list = f.Presets
		if f.Default != "" && defaultName == "" {
			defaultName = f.Default
		}
	}
	return NewPresets(list, defaultName)
}

// NewPresets valida una lista de presets y fija el preset por defecto
// (el primero si defaultName no existe).
func NewPresets(list []Preset, defaultName string) (*Presets, error) {
	if len(list) == 0 {
		return nil, errors.New("no presets configured")
	}
	p := &Presets{byName: make(map[string]Preset, len(list))}
	for _, pr := range list {
		if err := validate.Struct(pr); err != nil {
			return nil, fmt.Errorf("preset %q: %w", pr.Name, err)
		}
		if pr.BBox.IsZero() {
			return nil, fmt.Errorf("preset %q: bbox required", pr.Name)
		}
		key := strings.ToLower(pr.Name)
		if _, dup := p.byName[key]; dup {
			return nil, fmt.Errorf("preset %q defined twice", pr.Name)
		}
		p.byName[key] = pr
	}
	p.Default = strings.ToLower(defaultName)
	if _, ok := p.byName[p.Default]; !ok {
		p.Default = strings.ToLower(list[0].Name)
	}
	return p, nil
}

// Get elige un preset por nombre; vacío devuelve el preset por defecto.
func (p *Presets) Get(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = p.Default
	}
	pr, ok := p.byName[name]
	return pr, ok
}

// All devuelve los presets ordenados por nombre.
func (p *Presets) All() []Preset {
	out := make([]Preset, 0, len(p.byName))
	for _, pr := range p.byName {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
