package evalctx

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/ioreader"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/scheduler"
)

// EvalRequest is one evaluation's full input: script source, the evaluation
// context, and the host-enforced limits around it.
type EvalRequest struct {
	Source     string
	Context    Context
	Input      *ioreader.Reader
	AllowedEnv sandbox.AllowedEnv
	Limits     sandbox.Limits
	TimeoutMs  int64
}

// Evaluator runs scripts through the four-step execution protocol (§4.4):
// compile, call-or-use-as-value, watchdog-enforced timeout, codec-encode
// the result.
type Evaluator struct {
	builder *sandbox.Builder
}

// NewEvaluator constructs an Evaluator sharing one sandbox.Builder (and its
// registered @lmb/* modules) across every Run call.
func NewEvaluator(builder *sandbox.Builder) *Evaluator {
	return &Evaluator{builder: builder}
}

// Run executes req's script to completion and returns its value-codec
// encoded result.
func (e *Evaluator) Run(ctx context.Context, req EvalRequest) (codec.Value, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	L, sched, err := e.builder.Build(sandbox.Options{
		Ctx:        runCtx,
		Input:      req.Input,
		AllowedEnv: req.AllowedEnv,
		Limits:     req.Limits,
	})
	if err != nil {
		return codec.Nil, err
	}
	defer L.Close()

	fn, err := L.LoadString(req.Source)
	if err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindSyntax, "compile script", err)
	}

	value, err := e.callOrUse(L, sched, fn, req.Context)
	if err != nil {
		if runCtx.Err() != nil {
			return codec.Nil, lmberr.Wrap(lmberr.KindTimeout, "evaluation deadline exceeded", err)
		}
		return codec.Nil, err
	}
	return value, nil
}

// callOrUse implements protocol steps 1–2. The compiled chunk is run to
// completion first (its own top-level `return`, no arguments); if that
// returned value is itself callable, it is invoked as f(ctx) and *that*
// call's first result is the script's value — the `return function(ctx)
// ... end` handler-module shape. Otherwise the top-level return must
// already be value-codec-representable, or evaluation fails with
// expect_callable_return.
func (e *Evaluator) callOrUse(L *lua.LState, sched *scheduler.Scheduler, fn *lua.LFunction, ctx Context) (codec.Value, error) {
	topLevel, err := sched.RunTask(fn)
	if err != nil {
		return codec.Nil, err
	}

	if len(topLevel) > 0 {
		if handler, ok := topLevel[0].(*lua.LFunction); ok {
			results, err := sched.RunTask(handler, ctx.ToLua(L, sched))
			if err != nil {
				return codec.Nil, err
			}
			return firstAsCodec(results)
		}
	}
	return firstAsCodec(topLevel)
}

func firstAsCodec(results []lua.LValue) (codec.Value, error) {
	if len(results) == 0 {
		return codec.Nil, nil
	}
	cv, err := sandbox.FromLua(results[0])
	if err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindExpectCallableReturn, "script returned a non-representable, non-callable value", err)
	}
	return cv, nil
}
