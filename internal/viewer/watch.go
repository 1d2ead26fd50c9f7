package viewer

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// envWatcher reports changes to the local file behind the current
// environment map. It watches the file's directory so editors that
// replace the file are still seen.
type envWatcher struct {
	w   *fsnotify.Watcher
	log *zap.Logger

	mu   sync.Mutex
	name string
	file string
	dir  string
}

func newEnvWatcher(log *zap.Logger) (*envWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &envWatcher{w: w, log: log}, nil
}

// localMapPath returns the file behind an environment map name, or ""
// for data and http(s) URLs.
func localMapPath(name string) string {
	if name == "" || strings.HasPrefix(name, "data:") ||
		strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return ""
	}
	path, err := filepath.Abs(name)
	if err != nil {
		return ""
	}
	return path
}

// Track switches the watch to the map called name. An empty or remote
// name stops watching.
func (e *envWatcher) Track(name string) {
	file := localMapPath(name)

	e.mu.Lock()
	defer e.mu.Unlock()
	dir := filepath.Dir(file)
	if file == "" {
		dir = ""
	}
	if dir != e.dir {
		if e.dir != "" {
			if err := e.w.Remove(e.dir); err != nil {
				e.log.Debug("failed to stop watching", zap.String("dir", e.dir), zap.Error(err))
			}
		}
		if dir != "" {
			if err := e.w.Add(dir); err != nil {
				e.log.Warn("cannot watch environment map", zap.String("map", name), zap.Error(err))
				dir, file = "", ""
			}
		}
		e.dir = dir
	}
	e.name, e.file = name, file
}

// Run delivers the tracked map name to reload whenever its file is
// written or replaced, until ctx is done.
func (e *envWatcher) Run(ctx context.Context, reload func(name string)) {
	defer e.w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			e.mu.Lock()
			name, file := e.name, e.file
			e.mu.Unlock()
			if file != "" && filepath.Clean(ev.Name) == file {
				e.log.Debug("environment map changed on disk", zap.String("map", name))
				reload(name)
			}
		case err, ok := <-e.w.Errors:
			if !ok {
				return
			}
			e.log.Warn("environment map watcher error", zap.Error(err))
		}
	}
}
