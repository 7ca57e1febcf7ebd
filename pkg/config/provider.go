package config

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Provider hands out the configuration for one computation pass.
// Callers read it once at the start of a pass and never mutate the result.
type Provider interface {
	Current() *Config
}

// Static returns a Provider that always yields cfg.
// A nil cfg yields the defaults.
func Static(cfg *Config) Provider {
	if cfg == nil {
		cfg = Default()
	}
	return staticProvider{cfg: cfg}
}

type staticProvider struct{ cfg *Config }

func (p staticProvider) Current() *Config { return p.cfg }

// FileProvider re-reads a TOML file whenever its modification time changes.
// A file that fails to load keeps the last good configuration in effect.
type FileProvider struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	cfg     *Config
	modTime time.Time
}

// NewFileProvider loads path and returns a provider watching it.
func NewFileProvider(path string, logger *log.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = log.Default()
	}
	// Stamp before reading: an edit racing the load is seen as newer.
	var modTime time.Time
	if fi, err := os.Stat(path); err == nil {
		modTime = fi.ModTime()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &FileProvider{path: path, logger: logger, cfg: cfg, modTime: modTime}, nil
}

// Current returns the latest successfully loaded configuration.
func (p *FileProvider) Current() *Config {
	p.mu.Lock()
	defer p.mu.Unlock()

	fi, err := os.Stat(p.path)
	if err != nil || fi.ModTime().Equal(p.modTime) {
		return p.cfg
	}
	p.modTime = fi.ModTime()

	cfg, err := Load(p.path)
	if err != nil {
		p.logger.Warn("config reload failed, keeping previous", "path", p.path, "err", err)
		return p.cfg
	}
	p.logger.Debug("config reloaded", "path", p.path)
	p.cfg = cfg
	return p.cfg
}
