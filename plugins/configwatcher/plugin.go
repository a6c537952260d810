// Package configwatcher reloads the log level when the configuration file
// changes. It watches the file's directory with fsnotify, so editors that
// save by rename are seen too, and applies log_level through
// zerolog.SetGlobalLevel.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/bft-labs/tickship/pkg/log"
	"github.com/bft-labs/tickship/pkg/tickship"
)

// Plugin implements config watching functionality.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	onReload      func(zerolog.Level)

	// Runtime state
	watched  string
	current  zerolog.Level
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML file to watch. When empty, PluginConfig.ConfigPath
	// is used.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnReload, if set, is called after a new level was applied.
	OnReload func(zerolog.Level)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		onReload:      cfg.OnReload,
		logger:        log.NoopLogger{},
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records the log level already in effect and starts the watcher.
// The file is read only when it changes, so a level chosen by flag or
// environment survives startup.
func (p *Plugin) Initialize(ctx context.Context, cfg tickship.PluginConfig) error {
	p.mu.Lock()
	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))
	p.watched = p.path
	if p.watched == "" {
		p.watched = cfg.ConfigPath
	}
	p.current = zerolog.GlobalLevel()
	p.mu.Unlock()

	if p.watched == "" {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(p.watched)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("config watcher started", log.String("path", p.watched))
	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.watched)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

type levelFile struct {
	LogLevel string `toml:"log_level"`
}

// reload reads log_level from the watched file and applies it when it
// changed. A missing key leaves the level alone.
func (p *Plugin) reload() {
	level, ok, err := readLevel(p.watched)
	if err != nil {
		p.logger.Warn("config reload skipped", log.Err(err))
		return
	}
	if !ok {
		return
	}

	p.mu.Lock()
	changed := level != p.current
	p.current = level
	p.mu.Unlock()
	if !changed {
		return
	}

	zerolog.SetGlobalLevel(level)
	p.logger.Info("log level reloaded", log.String("level", level.String()))
	if p.onReload != nil {
		p.onReload(level)
	}
}

func readLevel(path string) (zerolog.Level, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return zerolog.NoLevel, false, err
	}
	var lf levelFile
	if err := toml.Unmarshal(b, &lf); err != nil {
		return zerolog.NoLevel, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if lf.LogLevel == "" {
		return zerolog.NoLevel, false, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(lf.LogLevel))
	if err != nil {
		return zerolog.NoLevel, false, err
	}
	return level, true, nil
}

// Level returns the level most recently applied or observed.
func (p *Plugin) Level() zerolog.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Ensure Plugin implements tickship.Plugin.
var _ tickship.Plugin = (*Plugin)(nil)
