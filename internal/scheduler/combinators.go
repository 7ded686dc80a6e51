package scheduler

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmberr"
)

// taskOutcome is one task's terminal state within a combinator call.
type taskOutcome struct {
	done   bool
	values []lua.LValue
	err    error
}

// driveTasks spawns one coroutine per fn in tasks and runs the scheduler's
// poll loop, round-robin, until every task reaches a terminal state
// (ResumeOK or ResumeError). Results are written into a pre-sized
// outcomes slice by original index — never by completion/append order —
// so every combinator built on top stays index-stable regardless of which
// task finishes first, per spec.md §8's ordering invariant.
func (s *Scheduler) driveTasks(tasks []*lua.LFunction) []taskOutcome {
	n := len(tasks)
	outcomes := make([]taskOutcome, n)
	threads := make([]*lua.LState, n)
	owner := make(map[*lua.LState]int, n)
	remaining := n

	settle := func(i int, status lua.ResumeState, values []lua.LValue, err error) {
		switch status {
		case lua.ResumeYield:
			return
		case lua.ResumeOK:
			outcomes[i] = taskOutcome{done: true, values: values}
		default:
			outcomes[i] = taskOutcome{done: true, err: asError(err)}
		}
		remaining--
	}

	for i, fn := range tasks {
		threads[i] = s.L.NewThread()
		owner[threads[i]] = i
		status, values, err := s.L.Resume(threads[i], fn)
		settle(i, status, values, err)
	}

	for remaining > 0 {
		res := <-s.completed
		s.unregister(res.thread)
		i, ok := owner[res.thread]
		if !ok {
			continue // stray completion from an unrelated, already-finished combinator
		}
		if outcomes[i].done {
			continue
		}
		var status lua.ResumeState
		var values []lua.LValue
		var err error
		if res.err != nil {
			status, values, err = s.L.Resume(threads[i], nil, lua.LString(res.err.Error()))
		} else {
			status, values, err = s.L.Resume(threads[i], nil, res.values...)
		}
		settle(i, status, values, err)
	}
	return outcomes
}

func asError(err error) error {
	if err == nil {
		return lmberr.New(lmberr.KindRuntime, "task failed")
	}
	return err
}

// JoinAll runs tasks concurrently (logically) and returns their results in
// input order. If any task errors, the whole call errors with the first
// rejection in input order, reported after every task has settled
// (driveTasks runs them all to completion).
func (s *Scheduler) JoinAll(tasks []*lua.LFunction) ([]lua.LValue, error) {
	outcomes := s.driveTasks(tasks)
	results := make([]lua.LValue, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			return nil, firstError(outcomes, i)
		}
		results[i] = firstValueOrNil(o.values)
	}
	return results, nil
}

func firstError(outcomes []taskOutcome, upTo int) error {
	for i := 0; i <= upTo; i++ {
		if outcomes[i].err != nil {
			return outcomes[i].err
		}
	}
	return outcomes[upTo].err
}

// SettledResult is one entry of all_settled's result array.
type SettledResult struct {
	Fulfilled bool
	Value     lua.LValue
	Reason    error
}

// AllSettled runs tasks concurrently and returns a settlement per task in
// input order. It never errors itself — task failures are reported inside
// the per-task SettledResult.
func (s *Scheduler) AllSettled(tasks []*lua.LFunction) []SettledResult {
	outcomes := s.driveTasks(tasks)
	out := make([]SettledResult, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			out[i] = SettledResult{Fulfilled: false, Reason: o.err}
			continue
		}
		out[i] = SettledResult{Fulfilled: true, Value: firstValueOrNil(o.values)}
	}
	return out
}

// Race returns the first task to fulfill, in completion order. If every
// task rejects, Race errors with the *last* rejection observed before
// polling stopped — the pinned resolution of spec.md's Open Question on
// race's all-rejected semantics (see DESIGN.md). Ties within the same
// scheduler tick resolve in input order, since Race's spawn loop resumes
// tasks in input order and returns on the first one whose initial Resume
// ends in ResumeOK.
func (s *Scheduler) Race(tasks []*lua.LFunction) (lua.LValue, error) {
	n := len(tasks)
	threads := make([]*lua.LState, n)
	owner := make(map[*lua.LState]int, n)
	finished := make([]bool, n)
	var lastErr error
	remaining := n

	resolve := func(i int, status lua.ResumeState, values []lua.LValue, err error) (lua.LValue, bool) {
		switch status {
		case lua.ResumeYield:
			return nil, false
		case lua.ResumeOK:
			finished[i] = true
			remaining--
			return firstValueOrNil(values), true
		default:
			finished[i] = true
			remaining--
			lastErr = asError(err)
			return nil, false
		}
	}

	for i, fn := range tasks {
		threads[i] = s.L.NewThread()
		owner[threads[i]] = i
		status, values, err := s.L.Resume(threads[i], fn)
		if v, won := resolve(i, status, values, err); won {
			return v, nil
		}
	}

	for remaining > 0 {
		res := <-s.completed
		s.unregister(res.thread)
		i, ok := owner[res.thread]
		if !ok || finished[i] {
			continue
		}
		var status lua.ResumeState
		var values []lua.LValue
		var err error
		if res.err != nil {
			status, values, err = s.L.Resume(threads[i], nil, lua.LString(res.err.Error()))
		} else {
			status, values, err = s.L.Resume(threads[i], nil, res.values...)
		}
		if v, won := resolve(i, status, values, err); won {
			return v, nil
		}
	}
	if lastErr == nil {
		lastErr = lmberr.New(lmberr.KindRuntime, "race: no task fulfilled")
	}
	return nil, lastErr
}

func firstValueOrNil(values []lua.LValue) lua.LValue {
	if len(values) == 0 {
		return lua.LNil
	}
	return values[0]
}
