package locator

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stormsight/stormsight/capture"
	"github.com/stormsight/stormsight/compass"
	"github.com/stormsight/stormsight/feature"
	"github.com/stormsight/stormsight/imgproc"
	"github.com/stormsight/stormsight/refmap"
	"github.com/stormsight/stormsight/transform"
)

// PlayerPosition is a localization result in world coordinates. Results are
// never mutated after construction.
type PlayerPosition struct {
	MapID string  `json:"map_id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Engine localizes the player from screen captures. Locate and Heading run
// synchronously in the caller's goroutine and are safe for concurrent use;
// the reference map cache is the only state shared across calls.
type Engine struct {
	cfg      *Config
	backend  feature.Backend
	store    *refmap.Store
	detector *compass.Detector
	cap      capture.Capturer
	logger   golog.Logger
}

// New wires an engine from its configuration. The feature backend is picked
// by cfg.Matcher.Backend; an empty name selects the best one compiled in. A
// nil logger is replaced with a no-op one.
func New(cfg *Config, cap capture.Capturer, logger golog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config is required")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if cap == nil {
		return nil, errors.New("a capturer is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backend, err := feature.Select(cfg.Matcher.Backend, cfg.Matcher, logger)
	if err != nil {
		return nil, err
	}
	detector, err := compass.NewDetector(cfg.Icon, logger)
	if err != nil {
		return nil, err
	}
	store, err := refmap.NewStore(&refmap.StoreConfig{AssetDir: cfg.AssetDir}, backend.Extract, logger)
	if err != nil {
		return nil, err
	}
	logger.Infow("localization engine ready", "backend", backend.Name(), "assets", cfg.AssetDir)
	return &Engine{
		cfg:      cfg,
		backend:  backend,
		store:    store,
		detector: detector,
		cap:      cap,
		logger:   logger,
	}, nil
}

// Store exposes the reference map cache, e.g. to start the asset watcher or
// to warm maps ahead of time.
func (e *Engine) Store() *refmap.Store { return e.store }

// Locate determines the player's absolute position on the given map by
// matching the localization capture against the reference image. It returns
// (nil, nil) when the current frame cannot be localized; callers retry on
// the next poll cycle.
func (e *Engine) Locate(mapID string) (*PlayerPosition, error) {
	res, ref, err := e.Match(mapID)
	if err != nil || res == nil {
		return nil, err
	}
	centroid := transform.QuadCentroid(res.Corners)
	pos := transform.MapToWorld(centroid, image.Pt(ref.Width, ref.Height), e.worldRect(ref))
	e.logger.Debugw("localized",
		"map", ref.ID, "inliers", len(res.Inliers), "x", pos.X, "y", pos.Y)
	return &PlayerPosition{MapID: ref.ID, X: pos.X, Y: pos.Y}, nil
}

// Match runs one localization attempt and returns the raw match result and
// the reference map it was computed against. A frame that cannot be matched
// yields (nil, nil, nil).
func (e *Engine) Match(mapID string) (*transform.MatchResult, *refmap.ReferenceMap, error) {
	region := e.cfg.Regions.Localize.Rect()
	frame, err := e.cap.CaptureRegion(region)
	if err != nil {
		return nil, nil, errors.Wrap(err, "capturing localization region")
	}
	if !e.store.SwitchTo(mapID) {
		return nil, nil, nil
	}
	ref, err := e.store.Load(mapID)
	if err != nil {
		if errors.Is(err, refmap.ErrMapNotFound) || errors.Is(err, refmap.ErrInvalidAsset) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	query, err := e.backend.Extract(imgproc.MakeGray(frame))
	if err != nil {
		return nil, nil, errors.Wrap(err, "extracting query features")
	}
	pairs, err := e.backend.Match(query, ref.Features)
	if err != nil {
		return nil, nil, errors.Wrap(err, "matching features")
	}
	if len(pairs) < e.cfg.Matcher.Matching.MinMatches {
		e.logger.Debugw("not enough matches this frame", "map", mapID, "matches", len(pairs))
		return nil, nil, nil
	}
	h, inliers, err := e.backend.EstimateHomography(pairs)
	if err != nil {
		if errors.Is(err, transform.ErrInsufficientMatches) ||
			errors.Is(err, transform.ErrDegenerateHomography) {
			e.logger.Debugw("no usable homography this frame", "map", mapID, "error", err)
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "estimating homography")
	}
	corners, err := transform.ProjectCorners(image.Pt(region.Dx(), region.Dy()), h)
	if err != nil {
		e.logger.Debugw("projected corners unusable this frame", "map", mapID, "error", err)
		return nil, nil, nil
	}
	return &transform.MatchResult{Pairs: pairs, Inliers: inliers, H: h, Corners: corners}, ref, nil
}

// Heading reports the direction the player icon points at. It returns
// (nil, nil) when no icon is visible this frame.
func (e *Engine) Heading(context compass.Context) (*compass.Direction, error) {
	region := e.cfg.Regions.Minimap
	if context == compass.ContextFullMap {
		region = e.cfg.Regions.FullMap
	}
	frame, err := e.cap.CaptureRegion(region.Rect())
	if err != nil {
		return nil, errors.Wrap(err, "capturing icon region")
	}
	profile := e.detector.ProfileFor(context, e.store.ActiveID())
	return e.detector.Detect(frame, profile)
}

// PositionFunc is one way of producing a position. It returns (nil, nil)
// when its approach cannot localize the current frame.
type PositionFunc func() (*PlayerPosition, error)

// FirstPosition runs strategies in order and returns the first position
// found. An error aborts the chain.
func FirstPosition(strategies ...PositionFunc) (*PlayerPosition, error) {
	for _, strategy := range strategies {
		pos, err := strategy()
		if err != nil {
			return nil, err
		}
		if pos != nil {
			return pos, nil
		}
	}
	return nil, nil
}

// PositionStrategies returns the engine's localization approaches in
// preference order: feature matching first, then the player icon on the
// fullscreen map.
func (e *Engine) PositionStrategies(mapID string) []PositionFunc {
	return []PositionFunc{
		func() (*PlayerPosition, error) { return e.Locate(mapID) },
		func() (*PlayerPosition, error) { return e.iconPosition(mapID) },
	}
}

// LocateAny tries every localization strategy in order.
func (e *Engine) LocateAny(mapID string) (*PlayerPosition, error) {
	return FirstPosition(e.PositionStrategies(mapID)...)
}

// iconPosition derives a coarse position from the player icon on the
// fullscreen map, which renders the whole reference map inside the fullmap
// region.
func (e *Engine) iconPosition(mapID string) (*PlayerPosition, error) {
	if !e.store.SwitchTo(mapID) {
		return nil, nil
	}
	ref, err := e.store.Load(mapID)
	if err != nil {
		if errors.Is(err, refmap.ErrMapNotFound) || errors.Is(err, refmap.ErrInvalidAsset) {
			return nil, nil
		}
		return nil, err
	}
	dir, err := e.Heading(compass.ContextFullMap)
	if err != nil || dir == nil {
		return nil, err
	}
	region := e.cfg.Regions.FullMap.Rect()
	refPt := r2.Point{
		X: dir.Centroid.X * float64(ref.Width) / float64(region.Dx()),
		Y: dir.Centroid.Y * float64(ref.Height) / float64(region.Dy()),
	}
	pos := transform.MapToWorld(refPt, image.Pt(ref.Width, ref.Height), e.worldRect(ref))
	e.logger.Debugw("localized from map icon", "map", ref.ID, "x", pos.X, "y", pos.Y)
	return &PlayerPosition{MapID: ref.ID, X: pos.X, Y: pos.Y}, nil
}

// worldRect resolves the world rectangle a reference map covers.
func (e *Engine) worldRect(ref *refmap.ReferenceMap) image.Rectangle {
	if mc, ok := e.cfg.Maps[ref.ID]; ok && mc.World != nil {
		return mc.World.Rect()
	}
	return image.Rect(0, 0, ref.Width, ref.Height)
}
