// Package settings holds the frontend settings registry.
//
// Values are layered: registered defaults, then a settings file, then
// updates the editor pushes through setting_changed notifications. Later
// layers overwrite earlier ones key by key. Observers are told about every
// effective change.
package settings

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/dshills/gridline/internal/bridge"
	"github.com/dshills/gridline/internal/logging"
)

// Change sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEditor  = "editor"
)

// Change describes an effective settings change.
type Change struct {
	Key    string
	Old    any
	New    any
	Source string
}

// Observer is called after a setting changes. It runs on the goroutine
// that made the change and must not block.
type Observer func(Change)

// WindowSettings are the settings the render loop reads every tick.
type WindowSettings struct {
	RefreshRate         int
	NoIdle              bool
	Fullscreen          bool
	HideMouseWhenTyping bool
}

// Store is the settings registry. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	settings map[string]*Setting
	values   map[string]any
	order    []string

	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64

	log *logging.Logger
}

// NewStore creates an empty store.
func NewStore(log *logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		settings:  make(map[string]*Setting),
		values:    make(map[string]any),
		observers: make(map[uint64]Observer),
		log:       log,
	}
}

// NewDefaultStore creates a store with the built-in settings registered.
func NewDefaultStore(log *logging.Logger) *Store {
	s := NewStore(log)
	for _, def := range Defaults() {
		if err := s.Register(def); err != nil {
			panic(err)
		}
	}
	return s
}

// Register adds a setting with its default value.
func (s *Store) Register(def Setting) error {
	value, err := def.Coerce(def.Default)
	if err != nil {
		return fmt.Errorf("default for %s: %w", def.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings[def.Key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Key)
	}
	d := def
	s.settings[def.Key] = &d
	s.values[def.Key] = value
	s.order = append(s.order, def.Key)
	return nil
}

// Keys returns the registered keys in registration order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Value returns the current value of key.
func (s *Store) Value(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Setting returns the definition of key.
func (s *Store) Setting(key string) (Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.settings[key]
	if !ok {
		return Setting{}, false
	}
	return *def, true
}

// Set coerces and stores value. It reports whether the effective value
// changed; observers are only called when it did.
func (s *Store) Set(key string, value any, source string) (bool, error) {
	s.mu.Lock()
	def, ok := s.settings[key]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	v, err := def.Coerce(value)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	old := s.values[key]
	if reflect.DeepEqual(old, v) {
		s.mu.Unlock()
		return false, nil
	}
	s.values[key] = v
	s.mu.Unlock()

	s.log.Debug("setting %s = %v (%s)", key, v, source)
	s.notify(Change{Key: key, Old: old, New: v, Source: source})
	return true, nil
}

// Apply sets every known key in values. Unknown keys and invalid values are
// reported together; the valid ones are still applied.
func (s *Store) Apply(values map[string]any, source string) error {
	var errs []error
	for _, key := range sortedKeys(values) {
		if _, err := s.Set(key, values[key], source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleChanged applies a value reported by the editor.
func (s *Store) HandleChanged(key string, value any) error {
	_, err := s.Set(key, value, SourceEditor)
	return err
}

// HandleChangedNotification applies every change of a setting_changed
// notification.
func (s *Store) HandleChangedNotification(n bridge.SettingChangedNotification) error {
	var errs []error
	for _, c := range n.Changes {
		if err := s.HandleChanged(c.Key, c.Value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Window returns a snapshot of the window settings.
func (s *Store) Window() WindowSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := WindowSettings{RefreshRate: 60}
	if v, ok := s.values[KeyRefreshRate].(int); ok {
		ws.RefreshRate = v
	}
	ws.NoIdle, _ = s.values[KeyNoIdle].(bool)
	ws.Fullscreen, _ = s.values[KeyFullscreen].(bool)
	ws.HideMouseWhenTyping, _ = s.values[KeyHideMouseWhenTyping].(bool)
	return ws
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers[id] = obs
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(c Change) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.obsMu.RUnlock()

	for _, obs := range observers {
		obs(c)
	}
}
