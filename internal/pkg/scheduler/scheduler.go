// Package scheduler provides fire-and-forget cancellable delayed tasks.
//
// Every task is stored under a caller-chosen id so it can be cancelled
// later (the round timer is cancelled when a correct answer arrives). A
// periodic sweep removes handles of finished tasks; Shutdown cancels all
// pending timers and waits for running actions to complete.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	statePending int32 = iota
	stateCancelled
	stateDone
)

type task struct {
	timer *time.Timer
	state atomic.Int32
}

// Scheduler is a supervised registry of delayed tasks.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
	stop  chan struct{}
	once  sync.Once
}

// New creates a Scheduler and starts its sweep loop.
func New(sweepInterval time.Duration) *Scheduler {
	s := &Scheduler{
		tasks: make(map[string]*task),
		stop:  make(chan struct{}),
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Schedule runs fn after delay, storing a cancellable handle under id.
// Scheduling with an id that is already registered replaces the handle;
// the previous task keeps running but can no longer be cancelled.
func (s *Scheduler) Schedule(id string, delay time.Duration, fn func()) {
	t := &task{}
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if !t.state.CompareAndSwap(statePending, stateDone) {
			return
		}
		fn()
	})

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()
}

// Cancel cancels the task stored under id if it is still pending.
// Cancelling an unknown, fired or already-cancelled task is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	if t.state.CompareAndSwap(statePending, stateCancelled) {
		if t.timer.Stop() {
			s.wg.Done()
		}
	}
}

// Len returns the number of registered handles, including finished ones
// that the sweep has not collected yet.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.state.Load() != statePending {
			delete(s.tasks, id)
		}
	}
}

// Shutdown cancels every pending task and waits for running actions to
// finish, so no background work leaks past process exit.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })

	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Cancel(id)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Scheduler drained")
		return nil
	case <-ctx.Done():
		log.Warn().Msg("Scheduler shutdown timed out")
		return ctx.Err()
	}
}
