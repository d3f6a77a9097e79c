package catalog

import (
	"fmt"
	"visiondemo/internal/model"

	"github.com/BurntSushi/toml"
)

// SceneInfo describes one recognition scene shown by the selector.
type SceneInfo struct {
	ID          model.Scene `json:"id" toml:"id"`
	Name        string      `json:"name" toml:"name"`
	Description string      `json:"description" toml:"description"`
	Label       string      `json:"label" toml:"label"` // category reported by the engine
}

// Catalog is the ordered list of scenes.
type Catalog struct {
	scenes []SceneInfo
}

type fileFormat struct {
	Scenes []SceneInfo `toml:"scenes"`
}

// Default returns the built-in scenes.
func Default() *Catalog {
	return &Catalog{scenes: []SceneInfo{
		{ID: model.SceneEBike, Name: "E-bike recognition", Description: "Detects electric bikes and riding violations", Label: "Electric Vehicle"},
		{ID: model.SceneRoad, Name: "Road defect recognition", Description: "Finds pavement damage and hazards", Label: "Road Defect"},
		{ID: model.SceneWater, Name: "Floating debris recognition", Description: "Monitors water surfaces for pollutants", Label: "Floating Debris"},
		{ID: model.SceneHelmet, Name: "Safety helmet recognition", Description: "Checks helmet use on construction sites", Label: "Safety Helmet"},
	}}
}

// Load returns the built-in catalog with entries from a TOML file applied on
// top. Only known scenes may appear in the file; blank fields keep defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	var f fileFormat
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode scenes file %s: %w", path, err)
	}

	for _, override := range f.Scenes {
		idx := c.index(override.ID)
		if idx < 0 {
			return nil, fmt.Errorf("scenes file %s: unknown scene %q", path, override.ID)
		}
		s := &c.scenes[idx]
		if override.Name != "" {
			s.Name = override.Name
		}
		if override.Description != "" {
			s.Description = override.Description
		}
		if override.Label != "" {
			s.Label = override.Label
		}
	}
	return c, nil
}

// Scenes returns a copy of the scene list.
func (c *Catalog) Scenes() []SceneInfo {
	return append([]SceneInfo(nil), c.scenes...)
}

// Label returns the detection label for a scene.
func (c *Catalog) Label(scene model.Scene) string {
	if idx := c.index(scene); idx >= 0 {
		return c.scenes[idx].Label
	}
	return ""
}

func (c *Catalog) index(scene model.Scene) int {
	for i, s := range c.scenes {
		if s.ID == scene {
			return i
		}
	}
	return -1
}
