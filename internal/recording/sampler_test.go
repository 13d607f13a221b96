package recording

import (
	"testing"
	"time"

	"github.com/yok-tottii/EzRecorder/internal/audio"
	"github.com/yok-tottii/EzRecorder/internal/waveform"
)

func TestSampler_TwelveTicks(t *testing.T) {
	loop := newLoop(t)
	view := waveform.NewView(waveform.DefaultCapacity, audio.MaxAmplitude, nil)
	source := &fakeSession{peak: 1000}
	sampler := NewSampler(loop, source, view, time.Hour)

	for i := 0; i < 12; i++ {
		if err := loop.Call(sampler.tick); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
	}

	var samples []float64
	loop.Call(func() { samples = view.Buffer().Samples() })

	if len(samples) != 12 {
		t.Fatalf("Expected 12 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s != 1000 {
			t.Errorf("sample %d = %v, expected 1000", i, s)
		}
	}
}

func TestSampler_DefaultInterval(t *testing.T) {
	sampler := NewSampler(newLoop(t), &fakeSession{}, waveform.NewView(0, 1, nil), 0)

	if sampler.interval != DefaultSampleInterval {
		t.Errorf("Expected %v, got %v", DefaultSampleInterval, sampler.interval)
	}
}

func TestSampler_StartStop(t *testing.T) {
	loop := newLoop(t)
	view := waveform.NewView(waveform.DefaultCapacity, audio.MaxAmplitude, nil)
	source := &fakeSession{peak: 7}
	sampler := NewSampler(loop, source, view, 2*time.Millisecond)

	if sampler.Running() {
		t.Error("Sampler should not run before Start")
	}

	sampler.Start()
	sampler.Start() // no second job

	if !sampler.Running() {
		t.Error("Sampler should run after Start")
	}
	waitFor(t, func() bool { return source.Reads() >= 3 })

	sampler.Stop()
	sampler.Stop()

	if sampler.Running() {
		t.Error("Sampler should not run after Stop")
	}

	reads := source.Reads()
	time.Sleep(20 * time.Millisecond)
	if source.Reads() != reads {
		t.Errorf("Expected no reads after Stop, got %d more", source.Reads()-reads)
	}
}

func TestSampler_StopBeforeStart(t *testing.T) {
	sampler := NewSampler(newLoop(t), &fakeSession{}, waveform.NewView(0, 1, nil), time.Millisecond)

	// Must not block or panic
	sampler.Stop()
}
