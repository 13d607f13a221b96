package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when posting to a loop that has been stopped
var ErrStopped = errors.New("loop stopped")

// Loop is a single execution context that runs posted funcs one at a time,
// in posting order. State owned by the loop needs no locking as long as it
// is only touched from funcs running on it.
type Loop struct {
	queue   chan func()
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewLoop creates a loop with the given queue depth
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Loop{
		queue: make(chan func(), queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the loop in its own goroutine. Calling Start twice is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running || l.stopped {
		return
	}
	l.running = true

	go l.run()
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-l.stop:
			return
		}
	}
}

// Post queues fn to run on the loop. It blocks while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- fn:
		return nil
	case <-l.stop:
		return ErrStopped
	}
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from a func already running on the loop.
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Stop terminates the loop after the func currently running, if any.
// Queued funcs that have not started are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	running := l.running
	close(l.stop)
	l.mu.Unlock()

	if running {
		<-l.done
	}
}

// Every runs fn on the loop immediately and then once per interval until the
// returned job is cancelled.
func (l *Loop) Every(interval time.Duration, fn func()) *Job {
	j := &Job{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	tick := func() {
		if j.cancelled.Load() {
			return
		}
		fn()
	}

	// post gives up when the job or the loop stops, so Cancel never waits on a full queue
	post := func() bool {
		select {
		case l.queue <- tick:
			return true
		case <-j.stop:
			return false
		case <-l.stop:
			return false
		}
	}

	go func() {
		defer close(j.done)

		if !post() {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !post() {
					return
				}
			case <-j.stop:
				return
			case <-l.stop:
				return
			}
		}
	}()

	return j
}

// Job is a handle to a repeating task started with Loop.Every
type Job struct {
	cancelled atomic.Bool
	once      sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Cancel stops the job. Ticks already queued on the loop are skipped.
// Cancel is idempotent and safe on a nil job.
func (j *Job) Cancel() {
	if j == nil {
		return
	}

	j.once.Do(func() {
		j.cancelled.Store(true)
		close(j.stop)
	})
	<-j.done
}

// Cancelled reports whether Cancel has been called
func (j *Job) Cancelled() bool {
	if j == nil {
		return true
	}
	return j.cancelled.Load()
}
