package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// PersonaProvider supplies the persona for the next answer
type PersonaProvider interface {
	Current() domain.Persona
}

// PersonaSource holds the active persona, optionally backed by a TOML file
// that is reloaded when it changes. A file that fails to parse leaves the
// previous persona in place.
type PersonaSource struct {
	current atomic.Pointer[domain.Persona]
	path    string
	logger  *slog.Logger
}

var _ PersonaProvider = (*PersonaSource)(nil)

// NewStaticPersonaSource serves a fixed persona.
func NewStaticPersonaSource(p domain.Persona) *PersonaSource {
	s := &PersonaSource{logger: slog.Default()}
	p = p.WithDefaults()
	s.current.Store(&p)
	return s
}

// NewFilePersonaSource loads the persona from path.
func NewFilePersonaSource(path string, logger *slog.Logger) (*PersonaSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := LoadPersonaFile(path)
	if err != nil {
		return nil, err
	}

	s := &PersonaSource{path: filepath.Clean(path), logger: logger}
	s.current.Store(p)
	return s, nil
}

// LoadPersonaFile parses a TOML persona file. Missing fields take the built-in defaults.
func LoadPersonaFile(path string) (*domain.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	p := domain.DefaultPersona()
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	p = p.WithDefaults()
	return &p, nil
}

// Current returns the active persona
func (s *PersonaSource) Current() domain.Persona {
	return *s.current.Load()
}

// Path returns the backing file, empty for a static source
func (s *PersonaSource) Path() string {
	return s.path
}

// Reload re-reads the backing file.
func (s *PersonaSource) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := LoadPersonaFile(s.path)
	if err != nil {
		return err
	}
	s.current.Store(p)
	s.logger.Info("persona reloaded", "path", s.path, "name", p.Name)
	return nil
}

// Watch reloads the persona whenever its file is written or replaced.
// It blocks until ctx is cancelled. Editors that save by rename are handled
// by watching the parent directory.
func (s *PersonaSource) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("persona watcher error", "error", err)
		}
	}
}

func (s *PersonaSource) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != s.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if err := s.Reload(); err != nil {
		s.logger.Warn("keeping previous persona", "path", s.path, "error", err)
	}
}
