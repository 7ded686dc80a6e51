package scheduler

import (
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) (*lua.LState, *Scheduler) {
	t.Helper()
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	t.Cleanup(L.Close)
	lua.OpenBase(L)
	lua.OpenCoroutine(L)
	sched := New(L)
	L.SetGlobal("sleep_ms", L.NewFunction(func(L *lua.LState) int {
		n := int64(L.CheckNumber(1))
		return sched.SleepMs(L, n)
	}))
	return L, sched
}

func compile(t *testing.T, L *lua.LState, src string) *lua.LFunction {
	t.Helper()
	fn, err := L.LoadString(src)
	require.NoError(t, err)
	return fn
}

func TestRunTaskSynchronousReturn(t *testing.T) {
	L, sched := newTestState(t)
	fn := compile(t, L, `return 42`)
	values, err := sched.RunTask(fn)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, lua.LNumber(42), values[0])
}

func TestRunTaskPropagatesError(t *testing.T) {
	L, sched := newTestState(t)
	fn := compile(t, L, `error("boom")`)
	_, err := sched.RunTask(fn)
	require.Error(t, err)
}

func TestRunTaskThroughSleepYield(t *testing.T) {
	L, sched := newTestState(t)
	fn := compile(t, L, `sleep_ms(5); return "done"`)
	start := time.Now()
	values, err := sched.RunTask(fn)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, lua.LString("done"), values[0])
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestJoinAllPreservesInputOrder(t *testing.T) {
	L, sched := newTestState(t)
	tasks := []*lua.LFunction{
		compile(t, L, `sleep_ms(15); return "slow"`),
		compile(t, L, `return "fast"`),
	}
	values, err := sched.JoinAll(tasks)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, lua.LString("slow"), values[0])
	assert.Equal(t, lua.LString("fast"), values[1])
}

func TestJoinAllErrorsOnFirstRejection(t *testing.T) {
	L, sched := newTestState(t)
	tasks := []*lua.LFunction{
		compile(t, L, `return "ok"`),
		compile(t, L, `error("task 2 failed")`),
	}
	_, err := sched.JoinAll(tasks)
	require.Error(t, err)
}

func TestAllSettledNeverErrors(t *testing.T) {
	L, sched := newTestState(t)
	tasks := []*lua.LFunction{
		compile(t, L, `return "ok"`),
		compile(t, L, `error("boom")`),
	}
	settled := sched.AllSettled(tasks)
	require.Len(t, settled, 2)
	assert.True(t, settled[0].Fulfilled)
	assert.Equal(t, lua.LString("ok"), settled[0].Value)
	assert.False(t, settled[1].Fulfilled)
	assert.Error(t, settled[1].Reason)
}

func TestRaceReturnsFirstFulfilled(t *testing.T) {
	L, sched := newTestState(t)
	tasks := []*lua.LFunction{
		compile(t, L, `sleep_ms(20); return "slow"`),
		compile(t, L, `return "fast"`),
	}
	v, err := sched.Race(tasks)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("fast"), v)
}

func TestRaceAllRejectedReturnsLastRejection(t *testing.T) {
	L, sched := newTestState(t)
	tasks := []*lua.LFunction{
		compile(t, L, `error("first")`),
		compile(t, L, `error("second")`),
	}
	_, err := sched.Race(tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
}
