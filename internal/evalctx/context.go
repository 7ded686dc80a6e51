// Package evalctx implements the per-invocation evaluation context (C4):
// the `ctx` table a script receives as its single argument, exposing
// ctx.state, ctx.store, and ctx.request, plus the Evaluator driving the
// four-step execution protocol around it.
package evalctx

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/scheduler"
	"github.com/henry40408/lmb/internal/store"
)

// RequestInfo mirrors an inbound HTTP request for ctx.request in serve
// mode. It is absent (nil) in plain eval mode.
type RequestInfo struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    string
}

// Context is the Go-side source of truth for one evaluation's injected
// ctx table. Fields left at their zero value are omitted from the
// projected Lua table, matching spec.md's "absent when no store is bound"
// / "absent in eval mode" rules.
type Context struct {
	State    codec.Value
	HasState bool
	Store    *store.Store
	Request  *RequestInfo
}

// ToLua projects c into the table passed as the single argument to a
// script's top-level function. store reads/writes are routed through
// sched so store I/O suspends the calling coroutine rather than blocking
// the whole evaluation, per the coroutine driver's (C6) yielding-op
// design for store I/O.
func (c *Context) ToLua(L *lua.LState, sched *scheduler.Scheduler) *lua.LTable {
	t := L.NewTable()
	if c.HasState {
		t.RawSetString("state", sandbox.ToLua(L, c.State))
	}
	if c.Store != nil {
		t.RawSetString("store", newStoreFacade(L, sched, c.Store))
	}
	if c.Request != nil {
		t.RawSetString("request", requestToLua(L, c.Request))
	}
	return t
}

func requestToLua(L *lua.LState, r *RequestInfo) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("method", lua.LString(r.Method))
	t.RawSetString("path", lua.LString(r.Path))
	t.RawSetString("body", lua.LString(r.Body))

	query := L.NewTable()
	for k, v := range r.Query {
		query.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("query", query)

	headers := L.NewTable()
	for k, v := range r.Headers {
		headers.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("headers", headers)
	return t
}
