package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Prompts are the stored instruction templates. Common applies to every
// guided mode; Explain and Idea extend it per mode.
type Prompts struct {
	Common  string `json:"common"`
	Explain string `json:"explain"`
	Idea    string `json:"idea"`
}

// DefaultPrompts are compiled-in fallbacks used until the settings file
// exists or when it omits a field.
var DefaultPrompts = Prompts{
	Common: "You are a helpful assistant backed by a locally hosted language model.\n" +
		"Answer concisely and concretely. When reference material is provided,\n" +
		"ground your answer in it.",
	Explain: "Favor plain language over jargon and build up from fundamentals.",
	Idea:    "Offer several distinct directions before going deep on any one of them.",
}

// Store holds the prompt templates, persisted as a JSON settings file and
// hot-reloaded when the file changes on disk.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	prompts Prompts

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore loads the settings file at path, falling back to defaults when it
// is missing or partial.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  logger,
		prompts: DefaultPrompts,
		done:    make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // defaults stand until the file appears
		}
		return fmt.Errorf("read prompt settings: %w", err)
	}

	loaded := DefaultPrompts
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse prompt settings: %w", err)
	}
	applyDefaults(&loaded)

	s.mu.Lock()
	s.prompts = loaded
	s.mu.Unlock()
	return nil
}

func applyDefaults(p *Prompts) {
	if p.Common == "" {
		p.Common = DefaultPrompts.Common
	}
	if p.Explain == "" {
		p.Explain = DefaultPrompts.Explain
	}
	if p.Idea == "" {
		p.Idea = DefaultPrompts.Idea
	}
}

// Get returns the current templates.
func (s *Store) Get() Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts
}

// Update validates and persists new templates. The file is written through a
// temp file and rename so a reload never observes a half-written settings
// file.
func (s *Store) Update(p Prompts) error {
	applyDefaults(&p)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prompt settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write prompt settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prompt settings: %w", err)
	}

	s.mu.Lock()
	s.prompts = p
	s.mu.Unlock()
	return nil
}

// Watch starts reloading the settings file whenever it changes. The watch is
// on the parent directory so editors that replace the file are still seen.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings directory: %w", err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := s.load(); err != nil {
					s.logger.Warn("prompt settings reload failed", "error", err)
					continue
				}
				s.logger.Info("prompt settings reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
