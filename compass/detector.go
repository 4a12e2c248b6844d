// Package compass detects the directional player icon in a screen capture
// and derives the heading it points at.
package compass

import (
	"fmt"
	"image"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/imgproc"
)

// ErrNoIcon indicates that no contour within the configured area bounds was
// found in the capture. Per-frame callers treat it as "heading unknown this
// frame" rather than a fault.
var ErrNoIcon = errors.New("no directional icon in capture")

// Context selects which on-screen surface the capture came from. The icon
// renders at a different size and brightness on each, so every context
// carries its own tuning profile.
type Context string

// The known capture contexts.
const (
	ContextMinimap Context = "minimap"
	ContextFullMap Context = "fullmap"
)

// maxOutlineVertices bounds the simplified icon outline handed to the
// enclosing triangle search.
const maxOutlineVertices = 12

// AreaBounds is the accepted filled contour area range, measured in
// upscaled pixels.
type AreaBounds struct {
	MinArea float64 `json:"min_area"`
	MaxArea float64 `json:"max_area"`
}

// Profile tunes icon detection for one capture context.
type Profile struct {
	WhiteMin uint8 `json:"white_min"`
	WhiteMax uint8 `json:"white_max"`
	AreaBounds
}

// Config holds the detector tuning for all capture contexts.
type Config struct {
	UpscaleFactor int     `json:"upscale_factor"`
	Minimap       Profile `json:"minimap"`
	FullMap       Profile `json:"fullmap"`
	// MapOverrides replaces the context profile's area bounds for specific
	// maps whose icon size differs from the default.
	MapOverrides map[string]AreaBounds `json:"map_overrides,omitempty"`
}

// DefaultConfig returns the detector tuning used when a configuration file
// does not override it. The fullscreen map caps the white band below 255 to
// reject the pure-white waypoint markers drawn on it.
func DefaultConfig() *Config {
	return &Config{
		UpscaleFactor: 4,
		Minimap: Profile{
			WhiteMin:   226,
			WhiteMax:   255,
			AreaBounds: AreaBounds{MinArea: 500, MaxArea: 12000},
		},
		FullMap: Profile{
			WhiteMin:   226,
			WhiteMax:   253,
			AreaBounds: AreaBounds{MinArea: 800, MaxArea: 20000},
		},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.UpscaleFactor < 1 {
		return utils.NewConfigValidationError(path, errors.New("upscale_factor should be >= 1"))
	}
	if err := cfg.Minimap.validate(fmt.Sprintf("%s.minimap", path)); err != nil {
		return err
	}
	if err := cfg.FullMap.validate(fmt.Sprintf("%s.fullmap", path)); err != nil {
		return err
	}
	for id, bounds := range cfg.MapOverrides {
		if err := bounds.validate(fmt.Sprintf("%s.map_overrides.%s", path, id)); err != nil {
			return err
		}
	}
	return nil
}

func (p Profile) validate(path string) error {
	if p.WhiteMin > p.WhiteMax {
		return utils.NewConfigValidationError(path, errors.New("white_min should not exceed white_max"))
	}
	return p.AreaBounds.validate(path)
}

func (b AreaBounds) validate(path string) error {
	if b.MinArea < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_area should be >= 0"))
	}
	if b.MaxArea <= b.MinArea {
		return utils.NewConfigValidationError(path, errors.New("max_area should be > min_area"))
	}
	return nil
}

// Direction is a detected directional icon. Coordinates are in the capture
// frame at its original scale; Degrees is a compass bearing with 0° at
// North (up on screen) increasing clockwise.
type Direction struct {
	Centroid r2.Point `json:"centroid"`
	Tip      r2.Point `json:"tip"`
	Degrees  float64  `json:"degrees"`
	Cardinal Cardinal `json:"cardinal"`
}

// Detector finds the directional icon in captures. It is stateless across
// frames and safe for concurrent use.
type Detector struct {
	cfg    *Config
	logger golog.Logger
}

// NewDetector creates a detector with the given tuning, or the defaults
// when cfg is nil. A nil logger is replaced with a no-op one.
func NewDetector(cfg *Config, logger golog.Logger) (*Detector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Detector{cfg: cfg, logger: logger}, nil
}

// ProfileFor resolves the tuning profile for a context. A per-map area
// override, when configured, takes precedence over the context profile's
// bounds.
func (d *Detector) ProfileFor(context Context, mapID string) Profile {
	profile := d.cfg.Minimap
	if context == ContextFullMap {
		profile = d.cfg.FullMap
	}
	if bounds, ok := d.cfg.MapOverrides[mapID]; ok {
		profile.AreaBounds = bounds
	}
	return profile
}

// Detect finds the directional icon in img and derives its heading. It
// returns (nil, nil) when no icon-sized contour is present; callers poll
// again on the next frame.
func (d *Detector) Detect(img image.Image, profile Profile) (*Direction, error) {
	dir, err := d.locateIcon(img, profile)
	if err != nil {
		if errors.Is(err, ErrNoIcon) {
			d.logger.Debugw("no icon this frame", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return dir, nil
}

// locateIcon runs the detection pipeline on a capture: upscale, white band
// mask, external contours, area filter, then tip and heading geometry on
// the first surviving contour.
func (d *Detector) locateIcon(img image.Image, profile Profile) (*Direction, error) {
	factor := d.cfg.UpscaleFactor
	scaled, err := imgproc.Upscale(img, factor)
	if err != nil {
		return nil, err
	}
	mask := imgproc.WhiteBandMask(scaled, profile.WhiteMin, profile.WhiteMax)
	contours := imgproc.FindExternalContours(mask)
	for _, contour := range contours {
		area := imgproc.ContourArea(contour)
		if area < profile.MinArea || area > profile.MaxArea {
			continue
		}
		centroid, tip, ok := iconGeometry(contour)
		if !ok {
			continue
		}
		deg := headingDegrees(centroid, tip)
		f := float64(factor)
		return &Direction{
			Centroid: r2.Point{X: centroid.X / f, Y: centroid.Y / f},
			Tip:      r2.Point{X: tip.X / f, Y: tip.Y / f},
			Degrees:  deg,
			Cardinal: CardinalFromDegrees(deg),
		}, nil
	}
	return nil, errors.Wrapf(ErrNoIcon,
		"%d contours, none usable within area [%.0f, %.0f]",
		len(contours), profile.MinArea, profile.MaxArea)
}

// iconGeometry computes the icon centroid and tip point from its outer
// contour. It reports false when the contour is too degenerate to carry a
// direction.
func iconGeometry(contour imgproc.Contour) (centroid, tip r2.Point, ok bool) {
	centroid, ok = imgproc.PolygonMoments(contour).Centroid()
	if !ok {
		return r2.Point{}, r2.Point{}, false
	}
	hull := imgproc.ConvexHull(contour)
	outline := imgproc.SimplifyClosed(hull, maxOutlineVertices)
	tri, err := imgproc.MinEnclosingTriangle(outline)
	if err != nil {
		return r2.Point{}, r2.Point{}, false
	}
	return centroid, tipVertex(tri), true
}

// tipVertex picks the triangle vertex with the greatest summed distance to
// the other two. On a chevron shaped icon that is the sharp forward point.
func tipVertex(tri [3]r2.Point) r2.Point {
	best := 0
	bestSum := -1.0
	for i := range tri {
		sum := 0.0
		for j := range tri {
			if i != j {
				sum += tri[i].Sub(tri[j]).Norm()
			}
		}
		if sum > bestSum {
			bestSum = sum
			best = i
		}
	}
	return tri[best]
}

// headingDegrees converts the centroid to tip vector into a compass
// bearing. Screen y grows downward, so the y delta is negated before the
// angle is taken.
func headingDegrees(centroid, tip r2.Point) float64 {
	rad := math.Atan2(-(tip.Y - centroid.Y), tip.X-centroid.X)
	return modAngDeg(90 - rad*180/math.Pi)
}
