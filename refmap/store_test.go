package refmap

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils"

	"github.com/stormsight/stormsight/feature"
)

type stubSet struct{ n int }

func (s stubSet) Len() int { return s.n }

// countingExtract returns an ExtractFunc that reports a fixed feature count
// and tallies its invocations.
func countingExtract(calls *atomic.Int64) ExtractFunc {
	return func(img *image.Gray) (feature.Set, error) {
		calls.Inc()
		return stubSet{n: img.Bounds().Dx()}, nil
	}
}

func writeMapAsset(t *testing.T, dir, id string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	f, err := os.Create(filepath.Join(dir, id+".png"))
	test.That(t, err, test.ShouldBeNil)
	defer utils.UncheckedErrorFunc(f.Close)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
}

func newTestStore(t *testing.T, dir string, extract ExtractFunc) *Store {
	t.Helper()
	store, err := NewStore(&StoreConfig{AssetDir: dir}, extract, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return store
}

func TestStoreNilLogger(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "quiet", 16, 16)
	var calls atomic.Int64
	store, err := NewStore(&StoreConfig{AssetDir: dir}, countingExtract(&calls), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, store.SwitchTo("quiet"), test.ShouldBeTrue)
	// The missing-id warn path must hold up without a caller logger.
	test.That(t, store.SwitchTo("ghost"), test.ShouldBeFalse)
}

func TestStoreSwitchTo(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "island_a", 64, 48)
	var calls atomic.Int64
	store := newTestStore(t, dir, countingExtract(&calls))

	mock := clock.NewMock()
	mock.Add(3 * time.Hour)
	store.clock = mock

	test.That(t, store.SwitchTo("island_a"), test.ShouldBeTrue)
	m := store.Current()
	test.That(t, m, test.ShouldNotBeNil)
	test.That(t, m.ID, test.ShouldEqual, "island_a")
	test.That(t, m.Width, test.ShouldEqual, 64)
	test.That(t, m.Height, test.ShouldEqual, 48)
	test.That(t, m.Features.Len(), test.ShouldEqual, 64)
	test.That(t, m.LoadedAt.Equal(mock.Now()), test.ShouldBeTrue)
	test.That(t, store.ActiveID(), test.ShouldEqual, "island_a")

	// A second switch is served from the cache.
	test.That(t, store.SwitchTo("island_a"), test.ShouldBeTrue)
	test.That(t, calls.Load(), test.ShouldEqual, 1)
	test.That(t, store.ComputeCount(), test.ShouldEqual, 1)
	test.That(t, store.HitCount(), test.ShouldEqual, 1)
}

func TestStoreMissingMapLogsOnce(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "real", 32, 32)
	var calls atomic.Int64
	logger, logs := golog.NewObservedTestLogger(t)
	store, err := NewStore(&StoreConfig{AssetDir: dir}, countingExtract(&calls), logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, store.SwitchTo("real"), test.ShouldBeTrue)
	test.That(t, store.SwitchTo("ghost"), test.ShouldBeFalse)
	test.That(t, store.SwitchTo("ghost"), test.ShouldBeFalse)

	// A failed switch deactivates nothing that was never active, and the
	// missing id is reported a single time.
	test.That(t, store.ActiveID(), test.ShouldEqual, "real")
	test.That(t, logs.FilterMessageSnippet("reference map unavailable").Len(), test.ShouldEqual, 1)

	// The previously active map stays usable.
	test.That(t, store.Current(), test.ShouldNotBeNil)
}

func TestStoreInvalidAssets(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o600), test.ShouldBeNil)
	var calls atomic.Int64
	store := newTestStore(t, dir, countingExtract(&calls))

	test.That(t, store.SwitchTo("broken"), test.ShouldBeFalse)
	_, err := store.Load("broken")
	test.That(t, err, test.ShouldWrap, ErrInvalidAsset)

	_, err = store.Load("../escape")
	test.That(t, err, test.ShouldWrap, ErrInvalidAsset)

	_, err = store.Load("absent")
	test.That(t, err, test.ShouldWrap, ErrMapNotFound)
	test.That(t, calls.Load(), test.ShouldEqual, 0)
}

func TestStoreExtractFailure(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "hostile", 16, 16)
	logger, logs := golog.NewObservedTestLogger(t)
	store, err := NewStore(&StoreConfig{AssetDir: dir}, func(*image.Gray) (feature.Set, error) {
		return nil, errors.New("backend exploded")
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, store.SwitchTo("hostile"), test.ShouldBeFalse)
	test.That(t, logs.FilterMessageSnippet("cannot prepare reference map").Len(), test.ShouldEqual, 1)
}

func TestStoreSingleComputePerID(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "crowded", 48, 48)
	var calls atomic.Int64
	slowExtract := func(img *image.Gray) (feature.Set, error) {
		calls.Inc()
		time.Sleep(20 * time.Millisecond)
		return stubSet{n: 1}, nil
	}
	store := newTestStore(t, dir, slowExtract)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			_, err := store.Load("crowded")
			test.That(t, err, test.ShouldBeNil)
		})
	}
	wg.Wait()
	test.That(t, calls.Load(), test.ShouldEqual, 1)
	test.That(t, store.ComputeCount(), test.ShouldEqual, 1)
}

func TestStoreConcurrentDistinctIDs(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "north", 32, 32)
	writeMapAsset(t, dir, "south", 40, 40)
	var calls atomic.Int64
	store := newTestStore(t, dir, countingExtract(&calls))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		id := "north"
		if i%2 == 1 {
			id = "south"
		}
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			test.That(t, store.SwitchTo(id), test.ShouldBeTrue)
		})
	}
	wg.Wait()
	test.That(t, calls.Load(), test.ShouldEqual, 2)
	test.That(t, store.LoadedIDs(), test.ShouldResemble, []string{"north", "south"})
}

func TestStoreInvalidateAndClear(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "island_a", 32, 32)
	writeMapAsset(t, dir, "island_b", 32, 32)
	var calls atomic.Int64
	store := newTestStore(t, dir, countingExtract(&calls))

	test.That(t, store.SwitchTo("island_a"), test.ShouldBeTrue)
	test.That(t, store.SwitchTo("island_b"), test.ShouldBeTrue)
	test.That(t, store.LoadedIDs(), test.ShouldResemble, []string{"island_a", "island_b"})

	_, ok := store.Get("island_a")
	test.That(t, ok, test.ShouldBeTrue)

	// Invalidating a non-active map keeps the active one.
	store.Invalidate("island_a")
	_, ok = store.Get("island_a")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, store.ActiveID(), test.ShouldEqual, "island_b")

	// Invalidating the active map deactivates it.
	store.Invalidate("island_b")
	test.That(t, store.Current(), test.ShouldBeNil)
	test.That(t, store.ActiveID(), test.ShouldEqual, "")

	// Reload works after invalidation.
	test.That(t, store.SwitchTo("island_a"), test.ShouldBeTrue)
	test.That(t, calls.Load(), test.ShouldEqual, 3)

	store.Clear()
	test.That(t, store.LoadedIDs(), test.ShouldBeEmpty)
	test.That(t, store.Current(), test.ShouldBeNil)
}

func TestStoreWatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	writeMapAsset(t, dir, "live", 32, 32)
	var calls atomic.Int64
	store := newTestStore(t, dir, countingExtract(&calls))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	test.That(t, store.Watch(ctx), test.ShouldBeNil)

	test.That(t, store.SwitchTo("live"), test.ShouldBeTrue)
	_, ok := store.Get("live")
	test.That(t, ok, test.ShouldBeTrue)

	// Rewriting the asset must evict the cache entry.
	writeMapAsset(t, dir, "live", 24, 24)
	evicted := false
	for i := 0; i < 200; i++ {
		if _, ok := store.Get("live"); !ok {
			evicted = true
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	test.That(t, evicted, test.ShouldBeTrue)
}

func TestStoreConfigValidate(t *testing.T) {
	cfg := &StoreConfig{}
	test.That(t, cfg.Validate("store"), test.ShouldNotBeNil)
	cfg.AssetDir = "/tmp/assets"
	test.That(t, cfg.Validate("store"), test.ShouldBeNil)

	logger := golog.NewTestLogger(t)
	_, err := NewStore(nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewStore(&StoreConfig{AssetDir: "x"}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
