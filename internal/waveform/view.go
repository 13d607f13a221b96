package waveform

import "sync"

// Surface is a drawing target for the waveform
type Surface interface {
	// Size returns the current drawable width and height
	Size() (width, height float64)
	// Clear erases everything drawn so far
	Clear()
	// DrawLine draws a straight line between two points
	DrawLine(x0, y0, x1, y1 float64)
}

// Frame is a snapshot of one redraw, suitable for JSON encoding
type Frame struct {
	Samples  []float64 `json:"samples"`
	Lines    []Line    `json:"lines"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Capacity int       `json:"capacity"`
}

// View owns a sample buffer and redraws a surface on every buffer mutation.
// Append, Reset and Redraw must be called from the owning execution context;
// LastFrame and Subscribe may be called from any goroutine.
type View struct {
	buffer       *Buffer
	surface      Surface
	maxAmplitude float64

	mu        sync.RWMutex
	last      Frame
	listeners map[int]func(Frame)
	nextID    int
}

// NewView creates a view with the given buffer capacity and amplitude ceiling
func NewView(capacity int, maxAmplitude float64, surface Surface) *View {
	v := &View{
		buffer:       NewBuffer(capacity),
		surface:      surface,
		maxAmplitude: maxAmplitude,
		listeners:    make(map[int]func(Frame)),
	}
	v.buffer.OnChange(v.Redraw)
	return v
}

// Append adds an amplitude sample and redraws
func (v *View) Append(sample float64) {
	v.buffer.Append(sample)
}

// Reset clears the buffer, as on view recreation
func (v *View) Reset() {
	v.buffer.Clear()
}

// Buffer returns the underlying sample buffer
func (v *View) Buffer() *Buffer {
	return v.buffer
}

// Redraw renders the current buffer to the surface.
// Call it after the surface changes size.
func (v *View) Redraw() {
	var width, height float64
	if v.surface != nil {
		width, height = v.surface.Size()
	}

	samples := v.buffer.Samples()
	lines := Render(samples, width, height, v.buffer.Cap(), v.maxAmplitude)

	if v.surface != nil {
		v.surface.Clear()
		for _, l := range lines {
			v.surface.DrawLine(l.X, l.Y0, l.X, l.Y1)
		}
	}

	frame := Frame{
		Samples:  samples,
		Lines:    lines,
		Width:    width,
		Height:   height,
		Capacity: v.buffer.Cap(),
	}

	v.mu.Lock()
	v.last = frame
	listeners := make([]func(Frame), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

// LastFrame returns the most recent redraw snapshot
func (v *View) LastFrame() Frame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

// Subscribe registers fn to receive every redraw snapshot.
// The returned func removes the subscription.
func (v *View) Subscribe(fn func(Frame)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.listeners[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}
