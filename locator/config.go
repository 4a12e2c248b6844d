// Package locator composes capture, reference maps, feature matching and
// icon detection into the player localization engine.
package locator

import (
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/compass"
	"github.com/stormsight/stormsight/feature"
)

// RectConfig is a screen or world rectangle in a configuration file.
type RectConfig struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts to an image.Rectangle.
func (r RectConfig) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate ensures all parts of the config are valid.
func (r RectConfig) Validate(path string) error {
	if r.Width <= 0 {
		return utils.NewConfigValidationError(path, errors.New("width should be > 0"))
	}
	if r.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.New("height should be > 0"))
	}
	return nil
}

// RegionsConfig holds the capture rectangles, in screen coordinates.
type RegionsConfig struct {
	// Localize is the minimap excerpt used for feature matching.
	Localize RectConfig `json:"localize"`
	// Minimap is the small box around the player icon on the minimap.
	Minimap RectConfig `json:"minimap"`
	// FullMap is the icon search area on the fullscreen map.
	FullMap RectConfig `json:"fullmap"`
}

// MapConfig carries per-map calibration.
type MapConfig struct {
	// World is the world-coordinate rectangle the reference map covers.
	// When absent, world coordinates equal reference map pixels.
	World *RectConfig `json:"world,omitempty"`
}

// Config holds everything the engine needs.
type Config struct {
	AssetDir string               `json:"assets_dir"`
	Regions  RegionsConfig        `json:"regions"`
	Matcher  *feature.Config      `json:"matcher"`
	Icon     *compass.Config      `json:"icon"`
	Maps     map[string]MapConfig `json:"maps,omitempty"`
}

// DefaultConfig returns the engine defaults, calibrated for the reference
// 1920x1080 layout. AssetDir has no default and must be supplied.
func DefaultConfig() *Config {
	return &Config{
		Regions: RegionsConfig{
			Localize: RectConfig{X: 68, Y: 71, Width: 80, Height: 80},
			Minimap:  RectConfig{X: 96, Y: 99, Width: 24, Height: 24},
			FullMap:  RectConfig{X: 600, Y: 180, Width: 720, Height: 720},
		},
		Matcher: feature.DefaultConfig(),
		Icon:    compass.DefaultConfig(),
	}
}

// Validate ensures all parts of the config are valid, reporting every
// invalid field rather than the first.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.AssetDir == "" {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "assets_dir"))
	}
	err = multierr.Append(err, cfg.Regions.Localize.Validate(fmt.Sprintf("%s.regions.localize", path)))
	err = multierr.Append(err, cfg.Regions.Minimap.Validate(fmt.Sprintf("%s.regions.minimap", path)))
	err = multierr.Append(err, cfg.Regions.FullMap.Validate(fmt.Sprintf("%s.regions.fullmap", path)))
	if cfg.Matcher == nil {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "matcher"))
	} else {
		err = multierr.Append(err, cfg.Matcher.Validate(fmt.Sprintf("%s.matcher", path)))
	}
	if cfg.Icon == nil {
		err = multierr.Append(err, utils.NewConfigValidationFieldRequiredError(path, "icon"))
	} else {
		err = multierr.Append(err, cfg.Icon.Validate(fmt.Sprintf("%s.icon", path)))
	}
	for id, mc := range cfg.Maps {
		if mc.World != nil {
			err = multierr.Append(err, mc.World.Validate(fmt.Sprintf("%s.maps.%s.world", path, id)))
		}
	}
	return err
}

// LoadConfig reads a JSON engine configuration. Absent fields keep their
// defaults.
func LoadConfig(file string) (*Config, error) {
	config := DefaultConfig()
	f, err := os.Open(file) //nolint:gosec
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", file)
	}
	if err := config.Validate(""); err != nil {
		return nil, err
	}
	return config, nil
}
