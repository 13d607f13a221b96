package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// flushInterval is how often captured samples are written to disk
const flushInterval = 500 * time.Millisecond

// portAudioRecorder implements CaptureSession, writing 16-bit PCM WAV
type portAudioRecorder struct {
	config Config

	mu        sync.Mutex
	stream    *portaudio.Stream
	file      *os.File
	encoder   *wav.Encoder
	pending   []int16
	peak      int
	prepared  bool
	capturing bool
	writeErr  error

	stopFlush chan struct{}
	flushDone chan struct{}
}

func newPortAudioRecorder(config Config) *portAudioRecorder {
	return &portAudioRecorder{
		config:  config,
		pending: make([]int16, 0, 64*1024),
	}
}

// Prepare opens the output file and the input stream
func (r *portAudioRecorder) Prepare(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.prepared {
		return fmt.Errorf("%w: session already prepared", ErrPrepare)
	}

	device, err := inputDevice(r.config.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrepare, err)
	}

	// Never truncate an existing recording
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to create output file: %w", ErrPrepare, err)
	}

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: r.config.Channels,
			Latency:  inputLatency(device, r.config.Latency),
		},
		SampleRate:      float64(r.config.SampleRate),
		FramesPerBuffer: 1024,
	}

	stream, err := portaudio.OpenStream(streamParams, r.callback)
	if err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to open stream: %v", ErrPrepare, err)
	}

	r.file = file
	r.stream = stream
	r.encoder = wav.NewEncoder(file, r.config.SampleRate, 16, r.config.Channels, 1)
	r.prepared = true
	return nil
}

// callback is called by PortAudio when audio data is available
func (r *portAudioRecorder) callback(in []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capturing {
		return
	}

	r.pending = append(r.pending, in...)
	if p := peakOf(in); p > r.peak {
		r.peak = p
	}
}

// Start begins capturing
func (r *portAudioRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.prepared {
		return ErrNotPrepared
	}
	if r.capturing {
		return fmt.Errorf("already capturing")
	}

	r.capturing = true
	if err := r.stream.Start(); err != nil {
		r.capturing = false
		return fmt.Errorf("failed to start stream: %w", err)
	}

	r.peak = 0
	r.stopFlush = make(chan struct{})
	r.flushDone = make(chan struct{})
	go r.flushLoop(r.stopFlush, r.flushDone)

	return nil
}

// flushLoop periodically moves captured samples from memory to the encoder
func (r *portAudioRecorder) flushLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// flushLocked writes pending samples; r.mu must be held
func (r *portAudioRecorder) flushLocked() {
	if len(r.pending) == 0 || r.encoder == nil || r.writeErr != nil {
		return
	}

	data := make([]int, len(r.pending))
	for i, s := range r.pending {
		data[i] = int(s)
	}
	r.pending = r.pending[:0]

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: r.config.Channels,
			SampleRate:  r.config.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.encoder.Write(buf); err != nil {
		r.writeErr = fmt.Errorf("failed to write samples: %w", err)
	}
}

// Stop ends capturing and finalizes the WAV header
func (r *portAudioRecorder) Stop() error {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return ErrNotCapturing
	}
	r.capturing = false
	stream := r.stream
	stopFlush, flushDone := r.stopFlush, r.flushDone
	r.mu.Unlock()

	// Stop the stream outside the lock so a running callback can finish
	streamErr := stream.Stop()

	close(stopFlush)
	<-flushDone

	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushLocked()
	if err := r.closeOutputLocked(); err != nil && r.writeErr == nil {
		r.writeErr = err
	}

	if streamErr != nil {
		return fmt.Errorf("failed to stop stream: %w", streamErr)
	}
	return r.writeErr
}

// closeOutputLocked finalizes the encoder and closes the file
func (r *portAudioRecorder) closeOutputLocked() error {
	var firstErr error
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			firstErr = fmt.Errorf("failed to finalize wav: %w", err)
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close output file: %w", err)
		}
		r.file = nil
	}
	return firstErr
}

// Release frees the stream and any open file. Safe to call at any point.
func (r *portAudioRecorder) Release() error {
	r.mu.Lock()
	capturing := r.capturing
	r.mu.Unlock()

	if capturing {
		// Keep releasing even if stopping fails; the stream still has to be closed
		_ = r.Stop()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if err := r.closeOutputLocked(); err != nil {
		firstErr = err
	}
	if r.stream != nil {
		if err := r.stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close stream: %w", err)
		}
		r.stream = nil
	}
	r.prepared = false
	return firstErr
}

// CurrentPeakAmplitude returns and resets the peak since the previous call
func (r *portAudioRecorder) CurrentPeakAmplitude() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capturing {
		return 0, ErrNotCapturing
	}

	peak := r.peak
	r.peak = 0
	return peak, nil
}
