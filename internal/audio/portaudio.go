package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver implements Backend using PortAudio
type PortAudioDriver struct {
	mu          sync.Mutex
	config      Config
	initialized bool
}

// NewPortAudioDriver creates a new PortAudio driver
func NewPortAudioDriver() (*PortAudioDriver, error) {
	// Initialize PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &PortAudioDriver{
		config: DefaultConfig(),
	}, nil
}

// ListDevices returns a list of available audio input devices
func (d *PortAudioDriver) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// If we can't get the default device, continue without marking any as default
		defaultInput = nil
	}

	var result []Device
	for i, dev := range devices {
		// Only include devices with input channels
		if dev.MaxInputChannels > 0 {
			isDefault := false
			if defaultInput != nil && dev.Name == defaultInput.Name {
				isDefault = true
			}

			result = append(result, Device{
				ID:        i,
				Name:      dev.Name,
				IsDefault: isDefault,
			})
		}
	}

	return result, nil
}

// Initialize validates and stores the configuration used by new sessions
func (d *PortAudioDriver) Initialize(config Config) error {
	if _, err := inputDevice(config.DeviceID); err != nil {
		return err
	}
	if config.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", config.SampleRate)
	}
	if config.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", config.Channels)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = config
	d.initialized = true
	return nil
}

// NewCaptureSession returns a capture handle using the current configuration
func (d *PortAudioDriver) NewCaptureSession() CaptureSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return newPortAudioRecorder(d.config)
}

// NewPlayer returns a playback handle on the default output device
func (d *PortAudioDriver) NewPlayer() Player {
	return newPortAudioPlayer()
}

// Close releases PortAudio
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Terminate PortAudio
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}

	d.initialized = false
	return nil
}

// inputDevice resolves a device ID; -1 selects the system default
func inputDevice(id int) (*portaudio.DeviceInfo, error) {
	var device *portaudio.DeviceInfo

	if id == -1 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		device = dev
	} else {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}

		if id < 0 || id >= len(devices) {
			return nil, fmt.Errorf("invalid device ID: %d", id)
		}

		device = devices[id]
	}

	// Validate device has input channels
	if device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("selected device '%s' (ID: %d) has no input channels (output-only device)",
			device.Name, id)
	}

	return device, nil
}

// inputLatency picks the device latency for the mode
func inputLatency(device *portaudio.DeviceInfo, mode LatencyMode) time.Duration {
	switch mode {
	case LowLatency:
		return device.DefaultLowInputLatency
	default:
		return device.DefaultHighInputLatency
	}
}
