package recording

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yok-tottii/EzRecorder/internal/audio"
	"github.com/yok-tottii/EzRecorder/internal/logger"
	"github.com/yok-tottii/EzRecorder/internal/scheduler"
)

var (
	// ErrPermissionDenied is returned when the microphone permission is missing
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrAlreadyRecording is returned by Start while a capture is active
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no capture is active
	ErrNotRecording = errors.New("not recording")
	// ErrStartFailed wraps capture Prepare/Start failures
	ErrStartFailed = errors.New("failed to start capture")
)

// FileExtension is the container written by the capture session
const FileExtension = "wav"

// FileName returns the storage name for a recording started at t
func FileName(t time.Time) string {
	return fmt.Sprintf("recording_%d.%s", t.UnixMilli(), FileExtension)
}

// State represents the current recording state
type State int

const (
	// Idle means not recording
	Idle State = iota
	// Recording means currently recording audio
	Recording
	// Stopping means the capture is being finalized
	Stopping
	// Starting means the capture device is being opened
	Starting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Stopping:
		return "Stopping"
	case Starting:
		return "Starting"
	default:
		return "Unknown"
	}
}

// PermissionChecker reports the microphone permission status
type PermissionChecker interface {
	MicrophoneGranted() bool
}

// SessionFactory creates exclusive capture handles
type SessionFactory interface {
	NewCaptureSession() audio.CaptureSession
}

// Waveform receives sampled amplitudes; it is only touched on the loop
type Waveform interface {
	SampleSink
	Reset()
}

// Refresher rescans the recording list after a file is written
type Refresher interface {
	Refresh() error
}

// Notifier tells the user about recording outcomes
type Notifier interface {
	RecordingStarted() error
	RecordingSaved(name string) error
	RecordingFailed(reason string) error
	MicrophonePermissionDenied() error
	RecordingTimeExceeded(seconds int) error
	AlreadyRecording() error
	NotRecording() error
}

// Config holds configuration for the recording manager
type Config struct {
	Dir            string
	MaxDuration    time.Duration
	SampleInterval time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration:    60 * time.Second,
		SampleInterval: DefaultSampleInterval,
	}
}

// Status is a snapshot of the manager for observers
type Status struct {
	State     State     `json:"-"`
	StateName string    `json:"state"`
	Path      string    `json:"path,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Deps are the collaborators of a Manager. Notifier, Library and Logger may be nil.
type Deps struct {
	Sessions    SessionFactory
	Permissions PermissionChecker
	Loop        *scheduler.Loop
	Waveform    Waveform
	Notifier    Notifier
	Library     Refresher
	Logger      *logger.Logger
}

// Manager owns the single capture session and its sampler
type Manager struct {
	deps Deps
	now  func() time.Time

	mu         sync.Mutex
	config     Config
	state      State
	session    audio.CaptureSession
	sampler    *Sampler
	path       string
	startedAt  time.Time
	stopTimer  *time.Timer
	generation int
	closed     bool
	listeners  []func(Status)
}

// New creates a new recording manager
func New(deps Deps, config Config) *Manager {
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	return &Manager{
		deps:   deps,
		now:    time.Now,
		config: config,
		state:  Idle,
	}
}

// Configure replaces the configuration used by the next recording
func (m *Manager) Configure(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	m.config = config
}

// OnStateChange registers fn to receive every status change
func (m *Manager) OnStateChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// GetState returns the current recording state
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns the current status
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:     m.state,
		StateName: m.state.String(),
		Path:      m.path,
		StartedAt: m.startedAt,
	}
}

// publish sends the current status to listeners; call without m.mu held
func (m *Manager) publish() {
	m.mu.Lock()
	status := m.statusLocked()
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// Start begins a new recording and returns its file path.
// The device is opened without holding the lock; the state is Starting meanwhile.
func (m *Manager) Start() (string, error) {
	m.mu.Lock()

	if m.state != Idle {
		m.mu.Unlock()
		m.notify(func(n Notifier) error { return n.AlreadyRecording() })
		return "", ErrAlreadyRecording
	}

	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: manager closed", ErrStartFailed)
	}

	if !m.deps.Permissions.MicrophoneGranted() {
		m.mu.Unlock()
		m.deps.Logger.Warn("Recording rejected: microphone permission denied")
		m.notify(func(n Notifier) error { return n.MicrophonePermissionDenied() })
		return "", ErrPermissionDenied
	}

	config := m.config
	m.state = Starting
	m.mu.Unlock()
	m.publish()

	path, session, err := m.openSession(config.Dir)

	m.mu.Lock()
	if err != nil || m.closed {
		m.state = Idle
		m.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: manager closed", ErrStartFailed)
			if stopErr := session.Stop(); stopErr != nil {
				m.deps.Logger.Warn("Failed to stop capture session: %v", stopErr)
			}
			m.discard(session, path, true)
		}
		m.deps.Logger.Error("Failed to start recording: %v", err)
		m.notify(func(n Notifier) error { return n.RecordingFailed(err.Error()) })
		m.publish()
		return "", err
	}

	m.state = Recording
	m.session = session
	m.path = path
	m.startedAt = m.now()
	m.generation++

	_ = m.deps.Loop.Post(m.deps.Waveform.Reset)
	m.sampler = NewSampler(m.deps.Loop, session, m.deps.Waveform, config.SampleInterval)
	m.sampler.Start()

	generation := m.generation
	maxDuration := config.MaxDuration
	m.stopTimer = time.AfterFunc(maxDuration, func() {
		m.autoStop(generation, maxDuration)
	})
	m.mu.Unlock()

	m.deps.Logger.Info("Recording started: %s", path)
	m.notify(func(n Notifier) error { return n.RecordingStarted() })
	m.publish()

	return path, nil
}

// openSession prepares and starts a capture session, releasing it on failure
func (m *Manager) openSession(dir string) (string, audio.CaptureSession, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("%w: failed to create recordings directory: %w", ErrStartFailed, err)
	}

	path := m.nextPath(dir)
	session := m.deps.Sessions.NewCaptureSession()

	if err := session.Prepare(path); err != nil {
		// A file that was already there belongs to another recording
		m.discard(session, path, !errors.Is(err, fs.ErrExist))
		return "", nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	if err := session.Start(); err != nil {
		m.discard(session, path, true)
		return "", nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	return path, session, nil
}

// nextPath returns a file name in dir not used by an existing recording.
// Starts within the same millisecond move on to the next one.
func (m *Manager) nextPath(dir string) string {
	t := m.now()
	for {
		path := filepath.Join(dir, FileName(t))
		if _, err := os.Lstat(path); err != nil {
			return path
		}
		t = t.Add(time.Millisecond)
	}
}

// discard releases a session that never started and optionally removes its partial file
func (m *Manager) discard(session audio.CaptureSession, path string, remove bool) {
	if err := session.Release(); err != nil {
		m.deps.Logger.Warn("Failed to release capture session: %v", err)
	}
	if !remove {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.deps.Logger.Warn("Failed to remove partial recording %s: %v", path, err)
	}
}

// Stop ends the current recording and returns the saved file path
func (m *Manager) Stop() (string, error) {
	return m.stop(false)
}

// autoStop fires when a recording reaches the max duration
func (m *Manager) autoStop(generation int, maxDuration time.Duration) {
	m.mu.Lock()
	current := m.generation == generation && m.state == Recording
	m.mu.Unlock()

	if !current {
		return
	}

	if _, err := m.stop(true); err == nil {
		m.notify(func(n Notifier) error {
			return n.RecordingTimeExceeded(int(maxDuration / time.Second))
		})
	}
}

func (m *Manager) stop(auto bool) (string, error) {
	m.mu.Lock()

	if m.state != Recording {
		m.mu.Unlock()
		if !auto {
			m.notify(func(n Notifier) error { return n.NotRecording() })
		}
		return "", ErrNotRecording
	}

	if m.stopTimer != nil {
		m.stopTimer.Stop()
		m.stopTimer = nil
	}

	m.state = Stopping
	session, sampler, path := m.session, m.sampler, m.path
	m.mu.Unlock()
	m.publish()

	// No amplitude reads after this point
	sampler.Stop()

	stopErr := session.Stop()
	if err := session.Release(); err != nil {
		m.deps.Logger.Warn("Failed to release capture session: %v", err)
	}

	m.mu.Lock()
	m.state = Idle
	m.session = nil
	m.sampler = nil
	m.path = ""
	m.startedAt = time.Time{}
	m.mu.Unlock()

	if m.deps.Library != nil {
		if err := m.deps.Library.Refresh(); err != nil {
			m.deps.Logger.Warn("Failed to refresh recordings: %v", err)
		}
	}
	m.publish()

	if stopErr != nil {
		m.deps.Logger.Error("Failed to stop recording %s: %v", path, stopErr)
		m.notify(func(n Notifier) error { return n.RecordingFailed(stopErr.Error()) })
		return path, fmt.Errorf("failed to stop capture: %w", stopErr)
	}

	m.deps.Logger.Info("Recording saved: %s", path)
	m.notify(func(n Notifier) error { return n.RecordingSaved(filepath.Base(path)) })
	return path, nil
}

// Toggle starts a recording when idle and stops it otherwise.
// While a start is in progress it is rejected as a duplicate start.
func (m *Manager) Toggle() (string, error) {
	if state := m.GetState(); state == Idle || state == Starting {
		return m.Start()
	}
	return m.Stop()
}

// Close stops any active recording. A start still opening the device is discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if _, err := m.stop(true); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}

func (m *Manager) notify(send func(Notifier) error) {
	if m.deps.Notifier == nil {
		return
	}
	if err := send(m.deps.Notifier); err != nil {
		m.deps.Logger.Debug("Notification failed: %v", err)
	}
}
