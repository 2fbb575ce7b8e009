// Package sequence provides the single-threaded task runner that owns every
// window state machine. All mutations happen inside tasks posted here.
package sequence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned when posting to a runner that no longer accepts work.
var ErrStopped = errors.New("sequence: runner stopped")

// Runner executes tasks one at a time in post order.
type Runner interface {
	// PostTask queues task. It returns false if the runner is stopped.
	PostTask(task func()) bool
	// RunsTasksInCurrentSequence reports whether the caller is executing
	// inside one of this runner's tasks.
	RunsTasksInCurrentSequence() bool
}

// Loop is a Runner backed by a single goroutine started by Serve.
type Loop struct {
	name string

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}

	inTask atomic.Bool
	// owner is the id of the goroutine running Serve, zero when stopped.
	owner atomic.Uint64
}

// NewLoop creates a stopped loop; call Serve to start executing tasks.
func NewLoop(name string) *Loop {
	return &Loop{
		name: name,
		wake: make(chan struct{}, 1),
	}
}

func (l *Loop) String() string { return l.name }

func (l *Loop) PostTask(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// RunsTasksInCurrentSequence reports true only on the Serve goroutine while
// it executes a task; other goroutines get false even mid-task.
func (l *Loop) RunsTasksInCurrentSequence() bool {
	return l.inTask.Load() && l.owner.Load() == goroutineID()
}

// Serve runs tasks until ctx is cancelled. Tasks still queued at that point
// are dropped.
func (l *Loop) Serve(ctx context.Context) error {
	l.mu.Lock()
	l.stopped = false
	l.mu.Unlock()
	l.owner.Store(goroutineID())

	defer func() {
		l.owner.Store(0)
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.run(task)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) run(task func()) {
	l.inTask.Store(true)
	defer l.inTask.Store(false)
	task()
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Do runs fn on r and waits for it to return.
func Do(ctx context.Context, r Runner, fn func()) error {
	done := make(chan struct{})
	if !r.PostTask(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for task: %w", ctx.Err())
	}
}

// Manual is a Runner driven explicitly by the caller, for tests and tools that
// own their goroutine. Tasks may be posted from any goroutine.
type Manual struct {
	mu    sync.Mutex
	queue []func()
}

func (m *Manual) PostTask(task func()) bool {
	m.mu.Lock()
	m.queue = append(m.queue, task)
	m.mu.Unlock()
	return true
}

// RunsTasksInCurrentSequence always reports true; the caller owns the
// goroutine that drives a Manual.
func (m *Manual) RunsTasksInCurrentSequence() bool { return true }

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunUntilIdle executes tasks, including ones posted while running, until the
// queue is empty.
func (m *Manual) RunUntilIdle() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		task()
	}
}
