// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Watches the configuration file and reloads the Store when it changes.

package control

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a Store from a YAML file on every write, create or rename
// affecting that file. Invalid files are logged and ignored.
type Watcher struct {
	path  string
	store *Store
	log   zerolog.Logger
	fsw   *fsnotify.Watcher
	done  chan struct{}
	once  sync.Once
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file atomically are handled.
func NewWatcher(path string, store *Store, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w := &Watcher{
		path:  abs,
		store: store,
		log:   log,
		fsw:   fsw,
		done:  make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Reload re-reads the file immediately.
func (w *Watcher) Reload() error {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return err
	}
	return w.store.Update(cfg)
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
				continue
			}
			w.log.Info().Str("path", w.path).Msg("config reloaded")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		<-w.done
	})
	return err
}
