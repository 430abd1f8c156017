package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the .env file and applies the settings that can change at
// runtime. Only LOG_LEVEL is hot-reloadable; everything else needs a restart.
type Watcher struct {
	config   *Config
	envPath  string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	onLogLevel func(level string)
	debounce   time.Duration
}

// NewWatcher creates a watcher for cfg's .env file (DataDir/.env when Load did
// not find one).
func NewWatcher(cfg *Config) (*Watcher, error) {
	envPath := cfg.EnvFile
	if envPath == "" {
		envPath = filepath.Join(cfg.DataDir, ".env")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		config:   cfg,
		envPath:  envPath,
		watcher:  fw,
		stopChan: make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}, nil
}

// OnLogLevelChange registers the callback invoked with the new LOG_LEVEL.
func (w *Watcher) OnLogLevelChange(fn func(level string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLogLevel = fn
}

// LogLevel returns the most recently applied log level.
func (w *Watcher) LogLevel() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config.LogLevel
}

// Start begins watching the .env directory.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.envPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.watchForChanges()
	log.Info().Str("env_path", w.envPath).Msg("Started watching config file for changes")
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) watchForChanges() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.envPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce - wait a bit for write to complete
			time.Sleep(w.debounce)
			log.Info().Str("event", event.Op.String()).Msg("Detected .env file change")
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) reload() {
	envMap, err := godotenv.Read(w.envPath)
	if err != nil {
		log.Warn().Err(err).Str("file", w.envPath).Msg("Failed to re-read .env file")
		return
	}

	level := strings.ToLower(strings.TrimSpace(envMap["LOG_LEVEL"]))
	if level == "" {
		return
	}

	w.mu.Lock()
	changed := level != w.config.LogLevel
	if changed {
		w.config.LogLevel = level
	}
	callback := w.onLogLevel
	w.mu.Unlock()

	if changed {
		log.Info().Str("level", level).Msg("Applying log level from .env")
		if callback != nil {
			callback(level)
		}
	}
}
