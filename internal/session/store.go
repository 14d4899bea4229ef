// Package session keeps the client's current auth session and broadcasts changes to it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/terraincognita07/us/internal/models"
)

type Store struct {
	mu        sync.Mutex
	path      string
	current   *models.Session
	listeners map[int]func(*models.Session)
	nextID    int
	now       func() time.Time
}

// NewStore returns an in-memory store when path is empty.
func NewStore(path string) *Store {
	return &Store{
		path:      path,
		listeners: make(map[int]func(*models.Session)),
		now:       time.Now,
	}
}

// Load restores a persisted session. A missing file is not an error.
func (store *Store) Load() error {
	if store.path == "" {
		return nil
	}

	raw, err := os.ReadFile(store.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var persisted models.Session
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}

	store.mu.Lock()
	store.current = &persisted
	store.mu.Unlock()
	return nil
}

// Current returns a copy of the live session, or nil when signed out or expired.
func (store *Store) Current() *models.Session {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.current.Expired(store.now()) {
		return nil
	}
	return store.current.Clone()
}

func (store *Store) Set(next *models.Session) error {
	store.mu.Lock()
	store.current = next.Clone()
	err := store.persistLocked()
	listeners := store.snapshotListenersLocked()
	store.mu.Unlock()

	notify(listeners, next.Clone())
	return err
}

func (store *Store) Clear() error {
	return store.Set(nil)
}

func (store *Store) Subscribe(listener func(*models.Session)) func() {
	store.mu.Lock()
	id := store.nextID
	store.nextID++
	store.listeners[id] = listener
	store.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			store.mu.Lock()
			delete(store.listeners, id)
			store.mu.Unlock()
		})
	}
}

func (store *Store) persistLocked() error {
	if store.path == "" {
		return nil
	}

	if store.current == nil {
		if err := os.Remove(store.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(store.current)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(store.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmpPath := store.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmpPath, store.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (store *Store) snapshotListenersLocked() []func(*models.Session) {
	listeners := make([]func(*models.Session), 0, len(store.listeners))
	for _, listener := range store.listeners {
		listeners = append(listeners, listener)
	}
	return listeners
}

func notify(listeners []func(*models.Session), current *models.Session) {
	for _, listener := range listeners {
		listener(current.Clone())
	}
}
