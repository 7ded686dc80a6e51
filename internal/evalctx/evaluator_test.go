package evalctx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/store"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(sandbox.New(lmblog.Discard()))
}

func TestRunPlainValueReturn(t *testing.T) {
	ev := newTestEvaluator()
	v, err := ev.Run(context.Background(), EvalRequest{Source: `return 42`})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.AsInt())
}

func TestRunHandlerFunctionReceivesCtxState(t *testing.T) {
	ev := newTestEvaluator()
	v, err := ev.Run(context.Background(), EvalRequest{
		Source:  `return function(ctx) return ctx.state.name end`,
		Context: Context{State: stringMap(t, "name", "lmb"), HasState: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "lmb", v.AsString())
}

func TestRunNonCallableNonValueReturnFails(t *testing.T) {
	ev := newTestEvaluator()
	_, err := ev.Run(context.Background(), EvalRequest{Source: `return coroutine.create(function() end)`})
	require.Error(t, err)
}

func TestRunInstructionLimitAborts(t *testing.T) {
	ev := newTestEvaluator()
	_, err := ev.Run(context.Background(), EvalRequest{
		Source: `local i = 0; while true do i = i + 1 end`,
		Limits: sandbox.Limits{InstructionQuantum: 1000, MaxInstructions: 50000},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestRunWithStoreGetPutUpdate(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "lmb.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Put(context.Background(), "a", codec.Int(20)))

	ev := newTestEvaluator()
	v, err := ev.Run(context.Background(), EvalRequest{
		Source: `
			return function(ctx)
				local before = ctx.store.a
				ctx.store:update({"a", b = 0}, function(v)
					v.a = 10
					v.b = 10
					return "ok"
				end)
				return before
			end
		`,
		Context: Context{Store: st},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.AsInt())

	a, ok, err := st.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), a.AsInt())

	b, ok, err := st.Get(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), b.AsInt())
}

func TestRunStoreUpdateRollsBackOnScriptError(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "lmb.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Put(context.Background(), "a", codec.Int(20)))

	ev := newTestEvaluator()
	_, err = ev.Run(context.Background(), EvalRequest{
		Source: `
			return function(ctx)
				ctx.store:update({"a"}, function(v)
					v.a = 999
					error("boom")
				end)
			end
		`,
		Context: Context{Store: st},
	})
	require.Error(t, err)

	a, ok, err := st.Get(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(20), a.AsInt())
}

func stringMap(t *testing.T, k, v string) codec.Value {
	t.Helper()
	m := codec.NewMap()
	m.Set(codec.StrKey(k), codec.String(v))
	return m
}
