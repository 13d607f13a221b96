package recording

import (
	"sync"
	"time"

	"github.com/yok-tottii/EzRecorder/internal/scheduler"
)

// DefaultSampleInterval is the waveform sampling cadence
const DefaultSampleInterval = 100 * time.Millisecond

// AmplitudeSource reports the peak amplitude since the previous call
type AmplitudeSource interface {
	CurrentPeakAmplitude() (int, error)
}

// SampleSink receives one sample per tick
type SampleSink interface {
	Append(sample float64)
}

// Sampler reads the capture peak on the UI loop and appends it to the waveform.
// A failed read appends 0 for that tick.
type Sampler struct {
	loop     *scheduler.Loop
	source   AmplitudeSource
	sink     SampleSink
	interval time.Duration

	mu  sync.Mutex
	job *scheduler.Job
}

// NewSampler creates a sampler; a non-positive interval uses DefaultSampleInterval
func NewSampler(loop *scheduler.Loop, source AmplitudeSource, sink SampleSink, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		loop:     loop,
		source:   source,
		sink:     sink,
		interval: interval,
	}
}

// Start schedules sampling; the first read happens immediately
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && !s.job.Cancelled() {
		return
	}
	s.job = s.loop.Every(s.interval, s.tick)
}

// tick runs on the loop
func (s *Sampler) tick() {
	peak, err := s.source.CurrentPeakAmplitude()
	if err != nil {
		peak = 0
	}
	s.sink.Append(float64(peak))
}

// Stop cancels sampling and waits out a tick already running on the loop.
// Safe to call more than once; no read happens after it returns.
// It must not be called from the loop itself.
func (s *Sampler) Stop() {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()

	if job == nil {
		return
	}
	job.Cancel()
	// Barrier: anything queued before this has finished or been skipped
	_ = s.loop.Call(func() {})
}

// Running reports whether the sampler has an active job
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil && !s.job.Cancelled()
}
