// Package refmap loads reference map images from disk, extracts their
// features once and caches the result for concurrent readers.
package refmap

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.viam.com/utils"
	"golang.org/x/sync/singleflight"

	"github.com/stormsight/stormsight/feature"
	"github.com/stormsight/stormsight/imgproc"
)

var (
	// ErrMapNotFound is returned when no asset exists for a map id.
	ErrMapNotFound = errors.New("reference map not found")
	// ErrInvalidAsset is returned when a map asset exists but cannot be
	// used.
	ErrInvalidAsset = errors.New("reference map asset is invalid")
)

// assetExtensions are the recognized reference map image formats, in lookup
// order.
var assetExtensions = []string{".png", ".jpg", ".jpeg"}

// ReferenceMap is a fully prepared reference map: the grayscale image, its
// dimensions and the features extracted from it.
type ReferenceMap struct {
	ID       string
	Gray     *image.Gray
	Width    int
	Height   int
	Features feature.Set
	LoadedAt time.Time
}

// StoreConfig holds the parameters of the reference map store.
type StoreConfig struct {
	AssetDir string `json:"assets_dir"`
}

// Validate ensures all parts of the config are valid.
func (cfg *StoreConfig) Validate(path string) error {
	if cfg.AssetDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "assets_dir")
	}
	return nil
}

// ExtractFunc turns a map image into a feature set. The store calls it at
// most once per cached map.
type ExtractFunc func(img *image.Gray) (feature.Set, error)

// Store caches prepared reference maps by id. All methods are safe for
// concurrent use, and concurrent requests for the same uncached id share a
// single load.
type Store struct {
	cfg     *StoreConfig
	extract ExtractFunc
	logger  golog.Logger
	clock   clock.Clock

	mu      sync.RWMutex
	entries map[string]*ReferenceMap
	active  string

	group    singleflight.Group
	computes atomic.Int64
	hits     atomic.Int64

	missingMu sync.Mutex
	missing   map[string]struct{}
}

// NewStore creates a store that loads assets from cfg.AssetDir and prepares
// them with extract. A nil logger is replaced with a no-op one.
func NewStore(cfg *StoreConfig, extract ExtractFunc, logger golog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("store config is required")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if extract == nil {
		return nil, errors.New("an extract function is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		cfg:     cfg,
		extract: extract,
		logger:  logger,
		clock:   clock.New(),
		entries: map[string]*ReferenceMap{},
		missing: map[string]struct{}{},
	}, nil
}

// SwitchTo makes the given map the active one, loading and preparing it if
// needed. It returns false when the map cannot be used; the previous active
// map is kept in the cache but deactivated.
func (s *Store) SwitchTo(id string) bool {
	m, err := s.Load(id)
	if err != nil {
		if errors.Is(err, ErrMapNotFound) || errors.Is(err, ErrInvalidAsset) {
			s.logMissingOnce(id, err)
		} else {
			s.logger.Errorw("cannot prepare reference map", "map", id, "error", err)
		}
		s.mu.Lock()
		if s.active == id {
			s.active = ""
		}
		s.mu.Unlock()
		return false
	}
	s.mu.Lock()
	s.active = m.ID
	s.mu.Unlock()
	return true
}

// Load returns the prepared map for id, loading it when not cached.
func (s *Store) Load(id string) (*ReferenceMap, error) {
	s.mu.RLock()
	m := s.entries[id]
	s.mu.RUnlock()
	if m != nil {
		s.hits.Inc()
		return m, nil
	}
	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		// A finished load may have populated the cache while this caller
		// was entering the group.
		s.mu.RLock()
		cached := s.entries[id]
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		loaded, err := s.prepare(id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[id] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReferenceMap), nil
}

// prepare loads a map asset from disk and extracts its features.
func (s *Store) prepare(id string) (*ReferenceMap, error) {
	s.computes.Inc()
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, errors.Wrapf(ErrInvalidAsset, "bad map id %q", id)
	}
	path, ok := s.assetPath(id)
	if !ok {
		return nil, errors.Wrapf(ErrMapNotFound, "no asset for map %q in %s", id, s.cfg.AssetDir)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAsset, "cannot decode %s: %v", path, err)
	}
	gray := imgproc.MakeGray(img)
	if gray.Bounds().Dx() == 0 || gray.Bounds().Dy() == 0 {
		return nil, errors.Wrapf(ErrInvalidAsset, "map %q has zero area", id)
	}
	features, err := s.extract(gray)
	if err != nil {
		return nil, errors.Wrapf(err, "extracting features for map %q", id)
	}
	return &ReferenceMap{
		ID:       id,
		Gray:     gray,
		Width:    gray.Bounds().Dx(),
		Height:   gray.Bounds().Dy(),
		Features: features,
		LoadedAt: s.clock.Now(),
	}, nil
}

func (s *Store) assetPath(id string) (string, bool) {
	for _, ext := range assetExtensions {
		path := filepath.Join(s.cfg.AssetDir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// logMissingOnce reports an unusable map id a single time, so per-frame
// lookups of a bad id do not flood the log.
func (s *Store) logMissingOnce(id string, err error) {
	s.missingMu.Lock()
	defer s.missingMu.Unlock()
	if _, seen := s.missing[id]; seen {
		return
	}
	s.missing[id] = struct{}{}
	s.logger.Warnw("reference map unavailable", "map", id, "error", err)
}

// Current returns the active map, or nil when none is active.
func (s *Store) Current() *ReferenceMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return nil
	}
	return s.entries[s.active]
}

// ActiveID returns the id of the active map, or empty.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Get returns the cached map for id without loading it.
func (s *Store) Get(id string) (*ReferenceMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[id]
	return m, ok
}

// Invalidate drops a map from the cache. The next load reads the asset
// again, and a previously missing id is allowed to log again.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	if s.active == id {
		s.active = ""
	}
	s.mu.Unlock()

	s.missingMu.Lock()
	delete(s.missing, id)
	s.missingMu.Unlock()
}

// Clear drops every cached map and deactivates the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = map[string]*ReferenceMap{}
	s.active = ""
	s.mu.Unlock()

	s.missingMu.Lock()
	s.missing = map[string]struct{}{}
	s.missingMu.Unlock()
}

// LoadedIDs returns the ids of all cached maps, sorted.
func (s *Store) LoadedIDs() []string {
	s.mu.RLock()
	ids := lo.Keys(s.entries)
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ComputeCount returns how many asset loads have been attempted. Cached
// lookups never add to it.
func (s *Store) ComputeCount() int64 {
	return s.computes.Load()
}

// HitCount returns how many loads were served from the cache.
func (s *Store) HitCount() int64 {
	return s.hits.Load()
}
