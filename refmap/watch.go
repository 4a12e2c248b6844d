package refmap

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Watch invalidates cached maps when their assets change on disk, until ctx
// is done. It only drops cache entries; the next lookup reloads the asset.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create asset watcher")
	}
	if err := watcher.Add(s.cfg.AssetDir); err != nil {
		utils.UncheckedErrorFunc(watcher.Close)
		return errors.Wrapf(err, "cannot watch %s", s.cfg.AssetDir)
	}
	utils.PanicCapturingGo(func() {
		defer utils.UncheckedErrorFunc(watcher.Close)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				id, ok := assetID(event.Name)
				if !ok {
					continue
				}
				s.logger.Debugw("reference map asset changed", "map", id, "op", event.Op.String())
				s.Invalidate(id)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warnw("asset watcher error", "error", werr)
			}
		}
	})
	return nil
}

// assetID extracts the map id from an asset path, if the extension is a
// recognized image format.
func assetID(path string) (string, bool) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	for _, known := range assetExtensions {
		if ext == known {
			return strings.TrimSuffix(base, filepath.Ext(base)), true
		}
	}
	return "", false
}
