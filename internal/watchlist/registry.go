// Package watchlist manages the set of symbol/interval pairs the
// scheduler analyzes, loaded from a YAML file and hot-reloaded on change.
package watchlist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quantagent/internal/logger"
	"quantagent/internal/market"
	"quantagent/internal/pkg/symbol"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Entry is one symbol/interval pair under periodic analysis.
type Entry struct {
	Symbol   string `mapstructure:"symbol" yaml:"symbol" json:"symbol"`
	Interval string `mapstructure:"interval" yaml:"interval" json:"interval"`
	Bars     int    `mapstructure:"bars" yaml:"bars,omitempty" json:"bars,omitempty"`
}

// Key identifies an entry across reloads.
func (e Entry) Key() string {
	return e.Symbol + "@" + e.Interval
}

// FileConfig maps the watchlist file.
type FileConfig struct {
	Watchlist []Entry `mapstructure:"watchlist" yaml:"watchlist"`
}

// Snapshot is an immutable view of the current entries.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Entries  []Entry
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry holds the watchlist and watches its file for edits.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the watchlist file and starts watching it.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("watchlist reload failed, keeping previous entries: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current entries.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Entries returns the current entries without snapshot metadata.
func (r *Registry) Entries() []Entry {
	return r.Snapshot().Entries
}

// OnChange registers a listener for future reloads.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readWatchlistFile(r.path)
	if err != nil {
		return err
	}
	entries, err := normalizeEntries(cfg.Watchlist)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	r.mu.Unlock()
	logger.Infof("Watchlist loaded %d entries from %s", len(entries), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("watchlist listener")
			cb(snap)
		}(fn)
	}
}

func normalizeEntries(raw []Entry) ([]Entry, error) {
	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, e := range raw {
		sym := symbol.Clean(e.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("watchlist entry %d: empty symbol", i+1)
		}
		interval, err := market.NormalizeInterval(e.Interval)
		if err != nil {
			return nil, fmt.Errorf("watchlist entry %d (%s): %w", i+1, sym, err)
		}
		if e.Bars < 0 {
			return nil, fmt.Errorf("watchlist entry %d (%s): negative bars", i+1, sym)
		}
		norm := Entry{Symbol: sym, Interval: interval, Bars: e.Bars}
		if seen[norm.Key()] {
			logger.Warnf("watchlist entry %s duplicated, keeping first", norm.Key())
			continue
		}
		seen[norm.Key()] = true
		entries = append(entries, norm)
	}
	return entries, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	return Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Entries:  append([]Entry(nil), src.Entries...),
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func readWatchlistFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read watchlist failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse watchlist failed: %w", err)
	}
	return cfg, nil
}
