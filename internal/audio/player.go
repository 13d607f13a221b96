package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// portAudioPlayer implements Player on the default output device
type portAudioPlayer struct {
	mu           sync.Mutex
	source       pcmSource
	stream       *portaudio.Stream
	playing      bool
	finished     bool
	onCompletion func()
	completeOnce *sync.Once
}

func newPortAudioPlayer() *portAudioPlayer {
	return &portAudioPlayer{}
}

// SetSource opens and validates the file
func (p *portAudioPlayer) SetSource(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source != nil {
		return fmt.Errorf("source already set")
	}

	source, err := openSource(path)
	if err != nil {
		return err
	}

	p.source = source
	return nil
}

// Prepare opens an output stream matching the source format
func (p *portAudioPlayer) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		return ErrNoSource
	}
	if p.stream != nil {
		return nil
	}

	device, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("failed to get default output device: %w", err)
	}

	params := portaudio.HighLatencyParameters(nil, device)
	params.Output.Channels = p.source.Channels()
	params.SampleRate = float64(p.source.SampleRate())
	params.FramesPerBuffer = 1024

	stream, err := portaudio.OpenStream(params, p.callback)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	p.stream = stream
	p.completeOnce = &sync.Once{}
	p.finished = false
	return nil
}

// callback is called by PortAudio when it needs more output
func (p *portAudioPlayer) callback(out []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished || p.source == nil {
		clear(out)
		return
	}

	filled := 0
	for filled < len(out) {
		n, err := p.source.Read(out[filled:])
		filled += n
		if err != nil {
			// io.EOF or a decode error both end this run
			p.finished = true
			break
		}
		if n == 0 {
			break
		}
	}
	clear(out[filled:])

	if p.finished {
		once := p.completeOnce
		// The stream cannot be stopped from inside its own callback
		go p.complete(once)
	}
}

// complete stops the stream and fires the completion callback once per run
func (p *portAudioPlayer) complete(once *sync.Once) {
	once.Do(func() {
		p.mu.Lock()
		stream := p.stream
		wasPlaying := p.playing
		p.playing = false
		fn := p.onCompletion
		p.mu.Unlock()

		if !wasPlaying {
			return
		}
		if stream != nil {
			stream.Stop()
		}
		if fn != nil {
			fn()
		}
	})
}

// Start starts or resumes playback
func (p *portAudioPlayer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("player not prepared")
	}
	if p.playing {
		return nil
	}
	if p.finished {
		return io.EOF
	}

	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	p.playing = true
	return nil
}

// Pause suspends playback at the current position
func (p *portAudioPlayer) Pause() error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	stream := p.stream
	p.mu.Unlock()

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	return nil
}

// Stop ends playback without firing completion
func (p *portAudioPlayer) Stop() error {
	p.mu.Lock()
	wasPlaying := p.playing
	p.playing = false
	p.finished = true
	stream := p.stream
	p.mu.Unlock()

	if wasPlaying && stream != nil {
		if err := stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop playback: %w", err)
		}
	}
	return nil
}

// Release closes the stream and the source
func (p *portAudioPlayer) Release() error {
	if err := p.Stop(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close output stream: %w", err)
		}
		p.stream = nil
	}
	if p.source != nil {
		if err := p.source.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close source: %w", err)
		}
		p.source = nil
	}
	return firstErr
}

// OnCompletion sets the end-of-run callback
func (p *portAudioPlayer) OnCompletion(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCompletion = fn
}
