package policy

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileWatcher nudges an Engine to reload sooner than its next Evaluate call
// by watching the Standing Orders path with fsnotify. It is a hint only:
// Engine.maybeReload's mtime comparison remains authoritative (see
// SPEC_FULL.md §3), so a dropped fsnotify event — which does happen across
// editors that replace-via-rename — never leaves evaluate() serving a
// document staler than the file on disk for longer than one decision call.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	engine  *Engine
	path    string
	done    chan struct{}
}

// NewFileWatcher starts watching path for changes affecting engine.
func NewFileWatcher(engine *Engine, path string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	fw := &FileWatcher{watcher: w, engine: engine, path: path, done: make(chan struct{})}
	go fw.run()
	return fw, nil
}

func (fw *FileWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fw.engine.MarkDirty()
				// Some editors replace the file via rename; re-add so the
				// watch survives the swap.
				_ = fw.watcher.Add(fw.path)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", fw.path).Msg("standing orders file watcher error")
		case <-fw.done:
			return
		}
	}
}

// Stop terminates the watcher goroutine and releases its fsnotify handle.
func (fw *FileWatcher) Stop() {
	close(fw.done)
	fw.watcher.Close()
}
