package supervisor

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// configWatcher reloads the log level whenever the configuration file
// changes. The signal mapping is fixed for the process lifetime.
type configWatcher struct {
	path    string
	current *Config
	logging *Logging

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	logger *zap.SugaredLogger
}

func newConfigWatcher(path string, current *Config, logger *zap.Logger) (*configWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}

	// editors and configmap mounts replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch target: %w", err)
	}

	return &configWatcher{
		path:    abs,
		current: current,
		logging: current.Logging,
		watcher: watcher,
		done:    make(chan struct{}),
		logger:  logger.Sugar().Named("watch"),
	}, nil
}

// Run handles file events until Stop is called.
func (w *configWatcher) Run() error {
	defer w.watcher.Close()

	w.logger.Infof("watching %s", w.path)
	for {
		select {
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isValidEvent(event) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Errorf("watch error: %v", err)
		}
	}
}

// Stop ends Run. It is idempotent.
func (w *configWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *configWatcher) isValidEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	name := filepath.Clean(event.Name)
	if name == w.path {
		return true
	}
	// configmap volumes swap the ..data symlink atomically
	return event.Has(fsnotify.Create) && filepath.Base(name) == "..data"
}

func (w *configWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warnf("reload %s: %v", w.path, err)
		return
	}

	if cfg.From != w.current.From || cfg.To != w.current.To {
		w.logger.Warnf("signal mapping change in %s ignored until restart", w.path)
	}

	level := DefaultLogLevel
	if cfg.Logging != nil && cfg.Logging.Level != "" {
		level = cfg.Logging.Level
	}
	if err := w.logging.SetLevel(level); err != nil {
		w.logger.Warnf("reload log level: %v", err)
		return
	}
	w.logger.Infof("log level set to %s", level)
}
