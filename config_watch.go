package plexus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher re-reads a config file when it changes and hands the result to onChange.
type ConfigWatcher struct {
	log      Logger
	watcher  *fsnotify.Watcher
	path     string
	onChange func(Config)
	debounce time.Duration
	started  bool
	done     chan struct{}
}

func NewConfigWatcher(path string, log Logger, onChange func(Config)) (*ConfigWatcher, error) {
	if log == nil {
		log = NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &ConfigWatcher{
		log:      log,
		watcher:  watcher,
		path:     abs,
		onChange: onChange,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the file's directory, since editors often replace files instead of
// writing them in place. Events stop when ctx is done or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.log.Infof("watching config %s", w.path)
	w.started = true

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if w.relevant(event) {
					timer.Reset(w.debounce)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warnf("config watcher: %v", err)
			case <-timer.C:
				w.reload()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.log.Warnf("config reload skipped: %v", err)
		return
	}
	w.log.Infof("config reloaded from %s", w.path)
	w.onChange(cfg)
}

// Stop closes the watcher and waits for the event loop to exit.
func (w *ConfigWatcher) Stop() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}
