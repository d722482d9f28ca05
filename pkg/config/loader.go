// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Loader reads lexserve's YAML configuration from a local file and,
// optionally, watches it for changes.
type Loader struct {
	path     string
	onChange func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange sets a callback invoked with the newly reloaded config
// each time the watched file changes.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader for the config file at path.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	l := &Loader{path: absPath}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load reads, parses, expands, decodes, defaults, and validates the
// configuration file.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
	}

	rawMap, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(rawMap)

	cfg := &Config{}
	expandedMap, ok := expanded.(map[string]interface{})
	if !ok {
		expandedMap = map[string]interface{}{}
	}
	if err := decodeConfig(expandedMap, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Watch watches the config file's containing directory for changes
// (some systems don't support watching files directly), debounces rapid
// successive writes, reloads, and invokes onChange. Blocks until ctx is
// cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("loader is closed")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	l.watcher = watcher
	l.mu.Unlock()

	configDir := filepath.Dir(l.path)
	configFile := filepath.Base(l.path)

	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", configDir, err)
	}
	defer watcher.Close()

	slog.Info("watching config file", "path", l.path)

	var debounceTimer *time.Timer
	const debounceDelay = 100 * time.Millisecond
	changed := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
			case event.Op&fsnotify.Remove != 0:
				slog.Warn("config file was removed", "path", l.path)
				go l.tryRewatch(ctx, watcher, changed)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config file watcher error", "error", err)

		case <-changed:
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("failed to reload config", "error", err)
				continue
			}
			slog.Info("configuration reloaded")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// tryRewatch retries re-adding the watch after the config file is
// removed, in case it's about to be recreated (e.g. an editor's
// write-new-then-rename save pattern).
func (l *Loader) tryRewatch(ctx context.Context, watcher *fsnotify.Watcher, changed chan<- struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(l.path); err == nil {
				configDir := filepath.Dir(l.path)
				if err := watcher.Add(configDir); err == nil {
					slog.Info("re-established watch on config file", "path", l.path)
					select {
					case changed <- struct{}{}:
					default:
					}
					return
				}
			}
		}
	}
	slog.Warn("failed to re-establish watch on config file", "path", l.path)
}

// Close releases the watcher, if one was started.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}

// parseBytes parses raw bytes into a map, trying YAML first (a
// superset of JSON) and falling back to JSON.
func parseBytes(data []byte) (map[string]interface{}, error) {
	var result map[string]interface{}

	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
	}

	return result, nil
}

// decodeConfig decodes a map into a Config struct using mapstructure,
// matching the "yaml" struct tags already on Config's fields.
func decodeConfig(input map[string]interface{}, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Squash:           true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	return nil
}

// LoadConfigFile is a convenience function that creates a Loader and
// loads the config file in one call.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	loader, err := NewLoader(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	return cfg, loader, nil
}
