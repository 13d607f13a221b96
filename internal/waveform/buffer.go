package waveform

// DefaultCapacity is the number of amplitude samples kept for display
const DefaultCapacity = 100

// Buffer is a fixed-capacity FIFO of amplitude samples.
// When full, appending evicts the oldest sample. Buffer is not safe for
// concurrent use; it is owned by a single execution context (see scheduler.Loop).
type Buffer struct {
	samples  []float64
	head     int // index of the oldest sample
	count    int
	onChange func()
}

// NewBuffer creates a buffer holding at most capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		samples: make([]float64, capacity),
	}
}

// OnChange sets the callback invoked synchronously after every mutation
func (b *Buffer) OnChange(fn func()) {
	b.onChange = fn
}

// Append adds a sample at the end, evicting the oldest one if the buffer is full
func (b *Buffer) Append(sample float64) {
	capacity := len(b.samples)

	if b.count == capacity {
		// Overwrite the oldest slot and advance the head
		b.samples[b.head] = sample
		b.head = (b.head + 1) % capacity
	} else {
		b.samples[(b.head+b.count)%capacity] = sample
		b.count++
	}

	b.changed()
}

// Clear removes all samples
func (b *Buffer) Clear() {
	b.head = 0
	b.count = 0
	b.changed()
}

// Samples returns a copy of the samples, oldest first
func (b *Buffer) Samples() []float64 {
	result := make([]float64, b.count)
	capacity := len(b.samples)
	for i := 0; i < b.count; i++ {
		result[i] = b.samples[(b.head+i)%capacity]
	}
	return result
}

// Len returns the number of samples currently held
func (b *Buffer) Len() int {
	return b.count
}

// Cap returns the maximum number of samples
func (b *Buffer) Cap() int {
	return len(b.samples)
}

func (b *Buffer) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}
