package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yok-tottii/EzRecorder/internal/audio"
	"github.com/yok-tottii/EzRecorder/internal/logger"
)

var (
	// ErrNotFound is returned when a recording name is not in the list
	ErrNotFound = errors.New("recording not found")
	// ErrInvalidName is returned for names that are not plain file names
	ErrInvalidName = errors.New("invalid recording name")
	// ErrNoSession is returned by Pause and Resume when nothing is playing
	ErrNoSession = errors.New("no playback session")
	// ErrPlayback wraps SetSource/Prepare/Start failures
	ErrPlayback = errors.New("playback failed")
)

// DefaultExtensions is the file allow-list used when none is configured
var DefaultExtensions = []string{"wav", "mp3", "m4a"}

// Recording is one file in the storage directory
type Recording struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// PlaybackState is the state of the playback session
type PlaybackState int

const (
	// Playing means audio is being output
	Playing PlaybackState = iota
	// Paused means the session is kept at its position
	Paused
)

// String returns the string representation of the state
func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state by name
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *PlaybackState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Playing":
		*s = Playing
	case "Paused":
		*s = Paused
	default:
		return fmt.Errorf("unknown playback state: %q", text)
	}
	return nil
}

// Session is the single playback session, keyed by file path
type Session struct {
	ID    string        `json:"id"`
	Path  string        `json:"path"`
	Name  string        `json:"name"`
	State PlaybackState `json:"state"`
}

// Snapshot is what observers receive on every change
type Snapshot struct {
	Recordings []Recording `json:"recordings"`
	Session    *Session    `json:"session,omitempty"`
}

// PlayingIndex returns the list position of the session's recording, or -1
func (s Snapshot) PlayingIndex() int {
	if s.Session == nil {
		return -1
	}
	for i, r := range s.Recordings {
		if r.Path == s.Session.Path {
			return i
		}
	}
	return -1
}

// PlayerFactory creates exclusive playback handles
type PlayerFactory interface {
	NewPlayer() audio.Player
}

// Notifier tells the user about playback and delete failures
type Notifier interface {
	PlaybackFailed(reason string) error
	DeleteFailed(reason string) error
}

// Config holds the storage directory and the extension allow-list
type Config struct {
	Dir        string
	Extensions []string
}

// Library is the recording list and owner of the playback session
type Library struct {
	players  PlayerFactory
	notifier Notifier
	log      *logger.Logger

	mu         sync.Mutex
	config     Config
	recordings []Recording
	player     audio.Player
	session    *Session
	listeners  map[int]func(Snapshot)
	nextID     int
}

// New creates a library; notifier and log may be nil
func New(config Config, players PlayerFactory, notifier Notifier, log *logger.Logger) *Library {
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	return &Library{
		players:   players,
		notifier:  notifier,
		log:       log,
		config:    config,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Configure switches directory or allow-list and rescans
func (l *Library) Configure(config Config) error {
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}

	l.mu.Lock()
	l.config = config
	l.mu.Unlock()

	return l.Refresh()
}

// Dir returns the storage directory
func (l *Library) Dir() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config.Dir
}

// scan reads dir and returns allowed files sorted by name
func scan(dir string, extensions []string) ([]Recording, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Recording{}, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	recordings := make([]Recording, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if !allowed[ext] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}

		recordings = append(recordings, Recording{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Names carry epoch millis, so name order is creation order
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].Name < recordings[j].Name
	})

	return recordings, nil
}

// List rescans the storage directory and returns the recordings
func (l *Library) List() ([]Recording, error) {
	recordings, _, err := l.rescan()
	return recordings, err
}

// rescan replaces the cached list and reports whether its entries changed
func (l *Library) rescan() ([]Recording, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recordings, err := scan(l.config.Dir, l.config.Extensions)
	if err != nil {
		return nil, false, err
	}
	changed := !samePaths(l.recordings, recordings)
	l.recordings = recordings

	return append([]Recording{}, recordings...), changed, nil
}

// rescanAndPublish rescans and notifies observers only when the list changed
func (l *Library) rescanAndPublish() ([]Recording, error) {
	recordings, changed, err := l.rescan()
	if err != nil {
		return nil, err
	}
	if changed {
		l.publish()
	}
	return recordings, nil
}

func samePaths(a, b []Recording) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path {
			return false
		}
	}
	return true
}

// Refresh rescans and notifies observers
func (l *Library) Refresh() error {
	if _, _, err := l.rescan(); err != nil {
		return err
	}
	l.publish()
	return nil
}

// Recordings returns the last scanned list without touching the disk
func (l *Library) Recordings() []Recording {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Recording{}, l.recordings...)
}

// Find returns the recording with the given file name
func (l *Library) Find(name string) (Recording, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return Recording{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	recordings, err := l.rescanAndPublish()
	if err != nil {
		return Recording{}, err
	}
	for _, r := range recordings {
		if r.Name == name {
			return r, nil
		}
	}
	return Recording{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Latest returns the newest recording
func (l *Library) Latest() (Recording, error) {
	recordings, err := l.rescanAndPublish()
	if err != nil {
		return Recording{}, err
	}
	if len(recordings) == 0 {
		return Recording{}, ErrNotFound
	}
	return recordings[len(recordings)-1], nil
}

// Delete removes a recording, stopping playback first if it is the one playing.
// A file that is already gone counts as deleted.
func (l *Library) Delete(rec Recording) error {
	l.mu.Lock()

	if l.session != nil && l.session.Path == rec.Path {
		l.stopLocked()
	}

	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		l.mu.Unlock()
		l.log.Error("Failed to delete %s: %v", rec.Path, err)
		l.notify(func(n Notifier) error { return n.DeleteFailed(err.Error()) })
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	kept := make([]Recording, 0, len(l.recordings))
	for _, r := range l.recordings {
		if r.Path != rec.Path {
			kept = append(kept, r)
		}
	}
	l.recordings = kept
	l.mu.Unlock()

	l.log.Info("Deleted recording: %s", rec.Path)
	l.publish()
	return nil
}

// Play starts playing rec, replacing any current session
func (l *Library) Play(rec Recording) error {
	l.mu.Lock()

	l.stopLocked()

	id := uuid.NewString()
	player := l.players.NewPlayer()
	player.OnCompletion(func() { l.complete(id) })

	if err := startPlayer(player, rec.Path); err != nil {
		if relErr := player.Release(); relErr != nil {
			l.log.Warn("Failed to release player: %v", relErr)
		}
		l.mu.Unlock()

		l.log.Error("Failed to play %s: %v", rec.Path, err)
		l.notify(func(n Notifier) error { return n.PlaybackFailed(err.Error()) })
		l.publish()
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}

	l.player = player
	l.session = &Session{
		ID:    id,
		Path:  rec.Path,
		Name:  rec.Name,
		State: Playing,
	}
	l.mu.Unlock()

	l.log.Info("Playing %s (session %s)", rec.Path, id)
	l.publish()
	return nil
}

func startPlayer(player audio.Player, path string) error {
	if err := player.SetSource(path); err != nil {
		return err
	}
	if err := player.Prepare(); err != nil {
		return err
	}
	return player.Start()
}

// complete ends the session when its player reaches the end.
// A completion from a replaced session is ignored.
func (l *Library) complete(id string) {
	l.mu.Lock()
	if l.session == nil || l.session.ID != id {
		l.mu.Unlock()
		return
	}

	player := l.player
	l.player = nil
	l.session = nil
	l.mu.Unlock()

	if err := player.Release(); err != nil {
		l.log.Warn("Failed to release player: %v", err)
	}
	l.publish()
}

// Pause suspends the current session
func (l *Library) Pause() error {
	l.mu.Lock()

	if l.session == nil {
		l.mu.Unlock()
		return ErrNoSession
	}
	if l.session.State == Paused {
		l.mu.Unlock()
		return nil
	}

	if err := l.player.Pause(); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	l.session.State = Paused
	l.mu.Unlock()

	l.publish()
	return nil
}

// Resume continues a paused session
func (l *Library) Resume() error {
	l.mu.Lock()

	if l.session == nil {
		l.mu.Unlock()
		return ErrNoSession
	}
	if l.session.State == Playing {
		l.mu.Unlock()
		return nil
	}

	if err := l.player.Start(); err != nil {
		l.stopLocked()
		l.mu.Unlock()

		l.notify(func(n Notifier) error { return n.PlaybackFailed(err.Error()) })
		l.publish()
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	l.session.State = Playing
	l.mu.Unlock()

	l.publish()
	return nil
}

// Stop ends the current session. Stopping with no session is a no-op.
func (l *Library) Stop() error {
	l.mu.Lock()
	had := l.session != nil
	l.stopLocked()
	l.mu.Unlock()

	if had {
		l.publish()
	}
	return nil
}

// stopLocked stops and releases the player; l.mu must be held
func (l *Library) stopLocked() {
	if l.player != nil {
		if err := l.player.Stop(); err != nil {
			l.log.Warn("Failed to stop player: %v", err)
		}
		if err := l.player.Release(); err != nil {
			l.log.Warn("Failed to release player: %v", err)
		}
	}
	l.player = nil
	l.session = nil
}

// Session returns a copy of the current session
func (l *Library) Session() (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return Session{}, false
	}
	return *l.session, true
}

// Snapshot returns the cached list and the session
func (l *Library) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Library) snapshotLocked() Snapshot {
	snapshot := Snapshot{Recordings: append([]Recording{}, l.recordings...)}
	if l.session != nil {
		session := *l.session
		snapshot.Session = &session
	}
	return snapshot
}

// Subscribe registers fn to receive every change.
// The returned func removes the subscription.
func (l *Library) Subscribe(fn func(Snapshot)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *Library) publish() {
	l.mu.Lock()
	snapshot := l.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (l *Library) notify(send func(Notifier) error) {
	if l.notifier == nil {
		return
	}
	if err := send(l.notifier); err != nil {
		l.log.Debug("Notification failed: %v", err)
	}
}

// Close stops playback
func (l *Library) Close() error {
	return l.Stop()
}
