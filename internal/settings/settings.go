// Package settings persists user preferences, most importantly the category weights.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ecoshop/ecoshop/internal/domain"
	"github.com/ecoshop/ecoshop/internal/logging"
)

// Settings is the persisted preference document
type Settings struct {
	Weights       domain.UserWeights `yaml:"weights"`
	BadgePosition string             `yaml:"badge_position,omitempty"`
	DarkMode      bool               `yaml:"dark_mode"`
}

// Defaults returns the settings used when nothing has been saved yet
func Defaults() Settings {
	return Settings{Weights: domain.DefaultWeights(), BadgePosition: "top-right"}
}

// Store loads and saves settings from a YAML file
type Store struct {
	path   string
	logger logrus.FieldLogger

	mu        sync.RWMutex
	current   Settings
	listeners []func(domain.UserWeights)
}

// Open loads the settings file at path. A missing file yields defaults;
// a file with out-of-range weights is ignored in favour of the default weights.
func Open(path string, logger logrus.FieldLogger) (*Store, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:    expanded,
		logger:  logging.Component(logger, "settings"),
		current: Defaults(),
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", expanded, err)
	}
	if err := loaded.Weights.Validate(); err != nil {
		s.logger.WithError(err).Warn("Stored weights are invalid, using defaults")
		loaded.Weights = domain.DefaultWeights()
	}
	s.current = loaded

	return s, nil
}

// Path returns the resolved settings file path
func (s *Store) Path() string {
	return s.path
}

// Settings returns a copy of the current settings
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Weights returns the current weights
func (s *Store) Weights() domain.UserWeights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Weights
}

// OnChange registers fn to be called after every successful weight save, and,
// while Watch is running, whenever another process saves different weights
func (s *Store) OnChange(fn func(domain.UserWeights)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SaveWeights validates all three weights and persists them together.
// On any error nothing is written and the current weights are unchanged.
func (s *Store) SaveWeights(w domain.UserWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	next := s.current
	next.Weights = w
	if err := s.write(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	listeners := append([]func(domain.UserWeights){}, s.listeners...)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"production_and_brand":        w.ProductionAndBrand,
		"circularity_and_end_of_life": w.CircularityAndEndOfLife,
		"material_composition":        w.MaterialComposition,
	}).Info("Weights saved")

	for _, fn := range listeners {
		fn(w)
	}
	return nil
}

// Watch reloads the settings file whenever it is replaced on disk until ctx is
// done. The parent directory is watched because saves swap the file by rename.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch settings: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch settings dir %s: %w", dir, err)
	}

	name := filepath.Base(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
					continue
				}
				s.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Warn("Settings watcher error")
			}
		}
	}()
	return nil
}

// reload re-reads the file and notifies listeners when the weights differ.
// Unreadable or invalid content leaves the current settings in place.
func (s *Store) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to reload settings")
		return
	}
	loaded := Defaults()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		s.logger.WithError(err).Warn("Ignoring malformed settings file")
		return
	}
	if err := loaded.Weights.Validate(); err != nil {
		s.logger.WithError(err).Warn("Ignoring settings file with invalid weights")
		return
	}

	s.mu.Lock()
	changed := loaded.Weights != s.current.Weights
	s.current = loaded
	listeners := append([]func(domain.UserWeights){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.WithField("path", s.path).Info("Weights changed on disk")
	for _, fn := range listeners {
		fn(loaded.Weights)
	}
}

// write replaces the file atomically through a temp file in the same directory
func (s *Store) write(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("settings path is empty")
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
