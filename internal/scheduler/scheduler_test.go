package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_RunsInOrder(t *testing.T) {
	loop := NewLoop(0)
	loop.Start()
	defer loop.Stop()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := loop.Post(func() { order = append(order, i) }); err != nil {
			t.Fatalf("Post failed: %v", err)
		}
	}

	// Call acts as a barrier behind the posted funcs
	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, expected %d", i, v, i)
		}
	}
	if len(order) != 5 {
		t.Errorf("Expected 5 funcs to run, got %d", len(order))
	}
}

func TestLoop_PostAfterStop(t *testing.T) {
	loop := NewLoop(1)
	loop.Start()
	loop.Stop()

	if err := loop.Post(func() {}); err != ErrStopped {
		t.Errorf("Expected ErrStopped, got %v", err)
	}

	// Stopping twice is a no-op
	loop.Stop()
}

func TestLoop_StopWithoutStart(t *testing.T) {
	loop := NewLoop(1)
	loop.Stop()

	if err := loop.Call(func() {}); err != ErrStopped {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}

func TestEvery_TicksUntilCancelled(t *testing.T) {
	loop := NewLoop(0)
	loop.Start()
	defer loop.Stop()

	var count atomic.Int32
	job := loop.Every(10*time.Millisecond, func() {
		count.Add(1)
	})

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Job did not tick 3 times, got %d", count.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	job.Cancel()
	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	after := count.Load()

	time.Sleep(50 * time.Millisecond)
	if err := loop.Call(func() {}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if count.Load() != after {
		t.Errorf("Job kept ticking after Cancel: %d -> %d", after, count.Load())
	}
	if !job.Cancelled() {
		t.Error("Expected job to report cancelled")
	}
}

func TestEvery_FirstTickImmediate(t *testing.T) {
	loop := NewLoop(0)
	loop.Start()
	defer loop.Stop()

	ticked := make(chan struct{}, 1)
	job := loop.Every(time.Hour, func() {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})
	defer job.Cancel()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("Expected an immediate first tick")
	}
}

func TestJob_CancelIdempotent(t *testing.T) {
	loop := NewLoop(0)
	loop.Start()
	defer loop.Stop()

	job := loop.Every(time.Millisecond, func() {})
	job.Cancel()
	job.Cancel()

	var never *Job
	never.Cancel()
	if !never.Cancelled() {
		t.Error("Nil job should report cancelled")
	}
}

func TestJob_CancelFromLoop(t *testing.T) {
	loop := NewLoop(0)
	loop.Start()
	defer loop.Stop()

	var job *Job
	var count atomic.Int32
	done := make(chan struct{})

	ready := make(chan struct{})
	job = loop.Every(time.Millisecond, func() {
		<-ready
		if count.Add(1) == 2 {
			job.Cancel()
			close(done)
		}
	})
	close(ready)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel from inside the loop did not return")
	}
}

func TestEvery_LoopNotStarted(t *testing.T) {
	loop := NewLoop(1)

	var count atomic.Int32
	job := loop.Every(time.Millisecond, func() { count.Add(1) })

	// Queue fills up and nothing runs; Cancel must still return
	time.Sleep(20 * time.Millisecond)
	job.Cancel()

	if count.Load() != 0 {
		t.Errorf("Expected no ticks on a stopped loop, got %d", count.Load())
	}
	loop.Stop()
}
