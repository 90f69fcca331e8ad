package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Store holds the current compiled settings.
type Store struct {
	path    string
	current atomic.Pointer[Compiled]

	mu        sync.Mutex
	listeners []func(*Compiled)
}

// NewStore creates a store backed by the YAML file at path. An empty path or
// a missing file yields the defaults.
func NewStore(ctx context.Context, path string) (*Store, error) {
	s := &Store{path: path}
	s.current.Store(MustDefaults())

	if path == "" {
		return s, nil
	}
	if _, err := s.Reload(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

// NewStaticStore returns a store that always holds c.
func NewStaticStore(c *Compiled) *Store {
	s := &Store{}
	s.current.Store(c)
	return s
}

// Current returns the active settings.
func (s *Store) Current() *Compiled {
	return s.current.Load()
}

// OnChange registers fn to be called after every applied write.
func (s *Store) OnChange(fn func(*Compiled)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Apply validates and activates new settings. On error the previous
// settings stay active.
func (s *Store) Apply(ctx context.Context, next Settings) (*Compiled, error) {
	compiled, err := Compile(ctx, next)
	if err != nil {
		return nil, err
	}
	s.current.Store(compiled)

	s.mu.Lock()
	listeners := append([]func(*Compiled){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(compiled)
	}
	return compiled, nil
}

// Reload reads the settings file and applies it.
func (s *Store) Reload(ctx context.Context) (*Compiled, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	next, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, next)
}

// Parse decodes YAML settings. Unset fields keep their defaults; a
// placement_weights block is taken as written, with missing weights as 0.
func Parse(data []byte) (Settings, error) {
	next := Defaults()
	next.PlacementWeights = nil
	if err := yaml.Unmarshal(data, &next); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return next, nil
}

// Watch reloads the settings file whenever it changes, until ctx is done.
// The directory is watched so editors that replace the file are handled.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			compiled, err := s.Reload(ctx)
			if err != nil {
				slog.Warn("Settings reload rejected", "path", s.path, "error", err)
				continue
			}
			slog.Info("Settings reloaded", "path", s.path, "dynamic_rules", len(compiled.Machine.DynamicRules), "dropped_rules", len(compiled.DroppedRules))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Settings watcher error", "error", err)
		}
	}
}
