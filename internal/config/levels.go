package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var defaultLevels []byte

// Level is one rung of the lifetime-points ladder.
type Level struct {
	Name      string `yaml:"name" json:"name"`
	MinPoints int    `yaml:"min_points" json:"minPoints"`
	NextMin   int    `yaml:"next_min" json:"nextMin,omitempty"` // 0 means top level
	Icon      string `yaml:"icon" json:"icon"`
}

// LoadLevels parses the level table from path, or the embedded default when path is empty.
func LoadLevels(path string) ([]Level, error) {
	data := defaultLevels
	if path != "" {
		raw, err := os.ReadFile(path) //#nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("read levels file: %w", err)
		}
		data = raw
	}

	var levels []Level
	if err := yaml.Unmarshal(data, &levels); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}

	slices.SortFunc(levels, func(a, b Level) int { return a.MinPoints - b.MinPoints })
	if levels[0].MinPoints != 0 {
		return nil, fmt.Errorf("first level must start at 0 points, got %d", levels[0].MinPoints)
	}
	return levels, nil
}
