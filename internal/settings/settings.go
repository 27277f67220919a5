// Package settings is the generic key/value configuration store shared by
// the host and task bodies. Values come from a YAML or JSON file overlaid
// with WINPILOT_ environment variables.
package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/watch"
)

const (
	// EnvPrefix marks environment variables that override file values
	EnvPrefix = "WINPILOT_"

	// TasksKey holds per-task sections
	TasksKey = "tasks"

	delim = "."
)

// Store holds the settings file layer and the merged view with
// environment overrides applied. Keys are case-insensitive.
type Store struct {
	path string
	log  logger.LoggerInterface

	mu       sync.RWMutex
	file     *koanf.Koanf
	merged   *koanf.Koanf
	onReload []func()
}

// New creates a store backed by path. Nothing is read until Load.
func New(path string, log logger.LoggerInterface) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Store{
		path:   path,
		log:    log,
		file:   koanf.New(delim),
		merged: koanf.New(delim),
	}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// rawMap adapts an already parsed map to a koanf provider
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap provider does not support ReadBytes")
}

// Load reads the file and applies environment overrides. A missing file is
// treated as empty. On error the previous values are kept.
func (s *Store) Load() error {
	data, err := s.readFile()
	if err != nil {
		return err
	}

	file := koanf.New(delim)
	if err := file.Load(rawMap(data), nil); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	merged, err := s.overlayEnv(file)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.file = file
	s.merged = merged
	s.mu.Unlock()

	s.log.Debug("Settings loaded", slog.String("path", s.path), slog.Int("keys", len(merged.Keys())))

	return nil
}

func (s *Store) readFile() (map[string]any, error) {
	if s.path == "" {
		return map[string]any{}, nil
	}

	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	return normalize(data), nil
}

func (s *Store) overlayEnv(file *koanf.Koanf) (*koanf.Koanf, error) {
	merged := file.Copy()

	provider := env.Provider(delim, env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			key = strings.ReplaceAll(strings.ToLower(key), "__", delim)
			return key, value
		},
	})

	if err := merged.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	return merged, nil
}

// normalize lower-cases keys at every level
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = normalizeValue(v)
	}

	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalize(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = normalizeValue(item)
		}
		return items
	default:
		return v
	}
}

// Get returns the value at a dotted key
func (s *Store) Get(key string) (any, bool) {
	key = strings.ToLower(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.merged.Exists(key) {
		return nil, false
	}

	return s.merged.Get(key), true
}

// String returns the value at key as a string, or fallback when unset
func (s *Store) String(key, fallback string) string {
	key = strings.ToLower(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.merged.Exists(key) {
		return fallback
	}

	return s.merged.String(key)
}

// Set stores a value in memory. Call Save to persist it.
func (s *Store) Set(key string, value any) error {
	key = strings.ToLower(key)
	if key == "" {
		return errors.New("settings key is required")
	}

	if m, ok := value.(map[string]any); ok {
		value = normalize(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if err := s.merged.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

// All returns a copy of every merged value as a nested map
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.merged.Raw()
}

// Unmarshal decodes the section at key into out. An empty key decodes
// everything.
func (s *Store) Unmarshal(key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.merged.UnmarshalWithConf(strings.ToLower(key), out, koanf.UnmarshalConf{
		Tag: "mapstructure",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	})
}

// Save writes the file layer back to disk. Environment overrides are not
// persisted.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("settings store has no file")
	}

	s.mu.RLock()
	data, err := yaml.Marshal(s.file.Raw())
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace settings: %w", err)
	}

	return nil
}

// TaskSettings returns the section for a task. The tasks.<id> section wins,
// then a top-level <id> section. Missing sections yield an empty map.
func (s *Store) TaskSettings(id string) map[string]any {
	id = strings.ToLower(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range []string{TasksKey + delim + id, id} {
		if s.merged.Exists(key) {
			if section, ok := s.merged.Get(key).(map[string]any); ok {
				return section
			}
		}
	}

	return map[string]any{}
}

// OnReload registers a callback invoked after a successful reload
func (s *Store) OnReload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onReload = append(s.onReload, fn)
}

// Watch reloads the store whenever its file changes until ctx is done
func (s *Store) Watch(ctx context.Context, w *watch.Watcher) error {
	if s.path == "" {
		return errors.New("settings store has no file")
	}

	absPath, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("failed to resolve settings path: %w", err)
	}

	w.OnChange(func(path string) {
		if path != absPath || ctx.Err() != nil {
			return
		}

		if err := s.Load(); err != nil {
			s.log.Warn("Settings reload failed, keeping previous values", slog.Any("error", err))
			return
		}

		s.log.Info("Settings reloaded", slog.String("path", s.path))

		s.mu.RLock()
		callbacks := append([]func(){}, s.onReload...)
		s.mu.RUnlock()

		for _, fn := range callbacks {
			fn()
		}
	})

	return w.Watch(ctx, s.path)
}
