// Package scheduler implements the coroutine combinator scheduler (C6): a
// cooperative driver that multiplexes script-created coroutines over a
// single-threaded async executor, translating Lua yields (sleeps, HTTP
// awaits, store I/O) into host-level suspension points.
//
// Grounded directly on the pendingOps/completed-channel poll loop in
// haivivi-giztoy's Luau runtime: a Scheduler holds pending ops keyed by id,
// a buffered completed channel, and drives Resume in a loop shaped like
// "for status == yield { ... }", receiving one completion per pass.
package scheduler

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmberr"
)

func sleep(ms int64) {
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Work is the async body of a yielding host call: it runs on its own
// goroutine (never on the scheduler's own goroutine) and reports the
// values to resume the waiting coroutine with, or an error to raise in its
// place.
type Work func() ([]lua.LValue, error)

type pendingOp struct {
	id     uint64
	thread *lua.LState
}

type opResult struct {
	thread *lua.LState
	values []lua.LValue
	err    error
}

// Scheduler drives one or more Lua coroutines cooperatively. A Scheduler is
// not safe for concurrent use by multiple goroutines — it is owned by a
// single evaluation (one per VM/goroutine), matching spec.md's "within one
// scheduler, parallelism is logical, not physical."
type Scheduler struct {
	L         *lua.LState
	nextID    uint64
	pending   map[uint64]*pendingOp
	completed chan opResult
}

// New constructs a Scheduler bound to the given root VM state. All
// coroutines the scheduler drives are threads of L.
func New(L *lua.LState) *Scheduler {
	return &Scheduler{
		L:         L,
		pending:   make(map[uint64]*pendingOp),
		completed: make(chan opResult, 64),
	}
}

// Yield suspends thread (a coroutine previously obtained from L.NewThread)
// until work completes, then arranges for the scheduler's drive loop to
// resume thread with work's results. Yield must be called from inside the
// LGFunction implementing a yielding primitive (sleep_ms, fetch, store
// I/O); its return value must be returned directly from that LGFunction.
func (s *Scheduler) Yield(thread *lua.LState, work Work) int {
	s.registerPending(thread)
	go func() {
		values, err := work()
		s.completed <- opResult{thread: thread, values: values, err: err}
	}()
	return thread.Yield(lua.LNumber(0))
}

func (s *Scheduler) registerPending(thread *lua.LState) {
	s.nextID++
	s.pending[s.nextID] = &pendingOp{id: s.nextID, thread: thread}
}

func (s *Scheduler) unregister(thread *lua.LState) {
	for id, op := range s.pending {
		if op.thread == thread {
			delete(s.pending, id)
		}
	}
}

func (s *Scheduler) hasPending() bool { return len(s.pending) > 0 }

// PendingCount reports the number of coroutines currently suspended on a
// yielding op, for CLI/observability surfaces (`lmb stats`).
func (s *Scheduler) PendingCount() int { return len(s.pending) }

// RunTask runs fn as a fresh coroutine to completion, driving the
// scheduler's poll loop for any yielding calls fn makes, and returns its
// final results (or the first error it raises).
func (s *Scheduler) RunTask(fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	co := s.L.NewThread()
	status, values, err := s.L.Resume(co, fn, args...)
	for status == lua.ResumeYield {
		res := <-s.completed
		s.unregister(res.thread)
		if res.thread != co {
			// a stray completion from an unrelated coroutine that outlived
			// its owning combinator; drop it.
			continue
		}
		if res.err != nil {
			status, values, err = s.L.Resume(co, nil, lua.LString(res.err.Error()))
		} else {
			status, values, err = s.L.Resume(co, nil, res.values...)
		}
	}
	if status == lua.ResumeError {
		return nil, lmberr.Wrap(lmberr.KindRuntime, "task failed", err)
	}
	return values, nil
}

// SleepMs implements the sleep_ms(n) primitive: suspend the calling
// coroutine for at least n milliseconds as measured by a monotonic clock.
func (s *Scheduler) SleepMs(thread *lua.LState, ms int64) int {
	return s.Yield(thread, func() ([]lua.LValue, error) {
		sleep(ms)
		return nil, nil
	})
}
