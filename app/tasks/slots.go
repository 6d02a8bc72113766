package tasks

import (
	"context"
	"sync"
	"sync/atomic"
)

// slot guards a single source. busy is set from enqueue until the run
// finishes, covering both the queued and the running phase.
type slot struct {
	busy      atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
}

type slotArena struct {
	slots sync.Map // source id -> *slot
}

func (a *slotArena) get(id string) *slot {
	if s, ok := a.slots.Load(id); ok {
		return s.(*slot)
	}
	s, _ := a.slots.LoadOrStore(id, &slot{})
	return s.(*slot)
}

// acquire claims the slot for id without blocking.
func (a *slotArena) acquire(id string) (*slot, bool) {
	s := a.get(id)
	return s, s.busy.CompareAndSwap(false, true)
}

func (a *slotArena) inFlight() int {
	n := 0
	a.slots.Range(func(_, v any) bool {
		if v.(*slot).busy.Load() {
			n++
		}
		return true
	})
	return n
}

// begin derives the run context. It reports false when the run was cancelled
// while still queued.
func (s *slot) begin(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return nil, nil, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return runCtx, cancel, true
}

func (s *slot) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy.Load() {
		return false
	}

	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
	return true
}

func (s *slot) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel = nil
	s.cancelled = false
	s.busy.Store(false)
}
