package audio

import "errors"

// MaxAmplitude is the largest peak amplitude reported for 16-bit capture
const MaxAmplitude = 32767

var (
	// ErrPrepare is wrapped by every CaptureSession.Prepare failure
	// (invalid output path, unusable device or format)
	ErrPrepare = errors.New("capture prepare failed")
	// ErrNotPrepared is returned when starting a session that was not prepared
	ErrNotPrepared = errors.New("not prepared")
	// ErrNotCapturing is returned when reading amplitude or stopping outside start/stop
	ErrNotCapturing = errors.New("not capturing")
	// ErrUnsupportedFormat is returned by Player.SetSource for unknown file types
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoSource is returned when preparing a player without a source
	ErrNoSource = errors.New("no source set")
)

// Device represents an audio device
type Device struct {
	ID        int
	Name      string
	IsDefault bool
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds audio configuration
type Config struct {
	DeviceID   int
	SampleRate int
	Channels   int
	Latency    LatencyMode
}

// DefaultConfig returns the default audio configuration
// Sample rate: 44.1kHz
// Channels: 1 (mono)
// Latency: HighStability
func DefaultConfig() Config {
	return Config{
		DeviceID:   -1, // -1 means use default device
		SampleRate: 44100,
		Channels:   1,
		Latency:    HighStability,
	}
}

// CaptureSession is one exclusive recording handle.
// The call order is Prepare, Start, Stop, Release; Release is always safe.
type CaptureSession interface {
	// Prepare opens the input device and the output file at path
	Prepare(path string) error

	// Start begins capturing into the output file
	Start() error

	// Stop ends capturing and finalizes the output file
	Stop() error

	// Release frees the device and any open file
	Release() error

	// CurrentPeakAmplitude returns the largest absolute sample seen since the
	// previous call, in 0..MaxAmplitude. Valid only between Start and Stop.
	CurrentPeakAmplitude() (int, error)
}

// Player is one exclusive playback handle
type Player interface {
	// SetSource opens the file at path; fails if it is missing or unreadable
	SetSource(path string) error

	// Prepare opens the output device for the source
	Prepare() error

	// Start starts or resumes playback
	Start() error

	// Pause suspends playback, keeping the position
	Pause() error

	// Stop ends playback without firing completion
	Stop() error

	// Release frees the device and the source
	Release() error

	// OnCompletion sets the callback fired once when a run reaches the end
	OnCompletion(fn func())
}

// Backend creates capture and playback handles
type Backend interface {
	ListDevices() ([]Device, error)
	NewCaptureSession() CaptureSession
	NewPlayer() Player
}

// peakOf returns the largest absolute value in samples, clamped to MaxAmplitude
func peakOf(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak > MaxAmplitude {
		peak = MaxAmplitude
	}
	return peak
}
