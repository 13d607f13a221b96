package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates the hotkey was pressed
	Pressed EventType = iota
	// Released indicates the hotkey was released
	Released
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Config holds hotkey configuration
type Config struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
}

// DefaultConfig returns Ctrl+Option+R
func DefaultConfig() Config {
	return Config{
		Modifiers: []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
		Key:       hotkey.KeyR,
	}
}

// ParseConfig builds a Config from modifier flags and a key name such as "R" or "Space"
func ParseConfig(ctrl, shift, alt, cmd bool, key string) (Config, error) {
	k, ok := ParseKey(key)
	if !ok {
		return Config{}, fmt.Errorf("unsupported hotkey key: %q", key)
	}

	var mods []hotkey.Modifier
	if ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if shift {
		mods = append(mods, hotkey.ModShift)
	}
	if alt {
		mods = append(mods, hotkey.ModOption)
	}
	if cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Config{}, fmt.Errorf("hotkey needs at least one modifier")
	}

	return Config{Modifiers: mods, Key: k}, nil
}

// String returns the display form, e.g. ⌃⌥R
func (c Config) String() string {
	return FormatHotkey(c.Modifiers, c.Key)
}

// Manager manages global hotkey registration and events.
// Every key press is delivered as a Pressed event; the consumer decides what it toggles.
type Manager struct {
	hk        *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with default configuration
func New() *Manager {
	return &Manager{
		config:    DefaultConfig(),
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the hotkey with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := hotkey.New(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", config, err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen(hk, m.eventChan, m.stopChan)

	return nil
}

// RegisterDefault registers the current (default) hotkey
func (m *Manager) RegisterDefault() error {
	return m.Register(m.GetConfig())
}

// listen forwards key events until stop is closed
func (m *Manager) listen(hk *hotkey.Hotkey, events chan<- Event, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		var event Event
		select {
		case <-hk.Keydown():
			event = Event{Type: Pressed}
		case <-hk.Keyup():
			event = Event{Type: Released}
		case <-stop:
			return
		}

		select {
		case events <- event:
		case <-stop:
			return
		}
	}
}

// Events returns the event channel for receiving hotkey events
func (m *Manager) Events() <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventChan
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Keep cleaning up even if unregistering fails
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
		m.hk = nil
	}

	// Close event channel to notify consumers of shutdown
	close(m.eventChan)

	// Reset so a failed Unregister does not block the next Register
	m.running = false

	return unregisterErr
}

// Rebind replaces the registered hotkey. On failure the previous hotkey is restored.
func (m *Manager) Rebind(config Config) error {
	previous := m.GetConfig()
	wasRunning := m.IsRunning()

	if err := m.Close(); err != nil {
		return err
	}

	if err := m.Register(config); err != nil {
		if wasRunning {
			if restoreErr := m.Register(previous); restoreErr != nil {
				return fmt.Errorf("%w (restore failed: %v)", err, restoreErr)
			}
		}
		return err
	}
	return nil
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a deep copy of the current hotkey configuration
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}
