package evalctx

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/scheduler"
	"github.com/henry40408/lmb/internal/store"
)

// newStoreFacade builds ctx.store: an indexable object whose __index and
// __newindex metamethods route single-key reads/writes through the store,
// and whose direct "update" field enters the scripted transaction.
// get/put are yielding ops (§4.6) since they cross the SQLite boundary but
// never call back into Lua; update runs synchronously on the calling
// coroutine's own goroutine instead, since its callback must call back
// into this same *lua.LState, which only the scheduler's own goroutine may
// safely drive — documented as a deliberate deviation from "all store I/O
// is a yielding op" in DESIGN.md.
func newStoreFacade(L *lua.LState, sched *scheduler.Scheduler, st *store.Store) *lua.LTable {
	facade := L.NewTable()
	facade.RawSetString("update", L.NewFunction(func(L *lua.LState) int {
		return luaStoreUpdate(L, st)
	}))

	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		return sched.Yield(L, func() ([]lua.LValue, error) {
			v, ok, err := st.Get(context.Background(), name)
			if err != nil {
				return nil, lmberr.Wrap(lmberr.KindStoreBackend, "store get "+name, err)
			}
			if !ok {
				return []lua.LValue{lua.LNil}, nil
			}
			return []lua.LValue{sandbox.ToLua(L, v)}, nil
		})
	}))
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(2)
		val := L.Get(3)
		cv, err := sandbox.FromLua(val)
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "store put "+name, err))
			return 0
		}
		return sched.Yield(L, func() ([]lua.LValue, error) {
			if err := st.Put(context.Background(), name, cv); err != nil {
				return nil, err
			}
			return nil, nil
		})
	}))
	L.SetMetatable(facade, mt)
	return facade
}

// luaStoreUpdate implements ctx.store:update(spec, fn[, defaults]).
func luaStoreUpdate(L *lua.LState, st *store.Store) int {
	specTable := L.CheckTable(2)
	fn := L.CheckFunction(3)
	var defaults *lua.LTable
	if L.GetTop() >= 4 {
		defaults, _ = L.Get(4).(*lua.LTable)
	}

	spec, err := buildSpec(specTable, defaults)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindValueCodec, "store.update spec", err))
		return 0
	}

	result, err := st.Update(context.Background(), spec, func(v map[string]codec.Value) (codec.Value, error) {
		return runLuaUpdateFn(L, fn, spec, v)
	})
	if err != nil {
		raiseLmbErr(L, lmberr.AsError(err))
		return 0
	}
	L.Push(sandbox.ToLua(L, result))
	return 1
}

// runLuaUpdateFn calls fn(V) where V is a Lua table view of v, then writes
// V's (possibly fn-mutated) fields back into v before returning, since
// store.Update persists v's final state rather than fn's return value.
func runLuaUpdateFn(L *lua.LState, fn *lua.LFunction, spec store.Spec, v map[string]codec.Value) (codec.Value, error) {
	vt := L.NewTable()
	for name, val := range v {
		vt.RawSetString(name, sandbox.ToLua(L, val))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, vt); err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindRuntime, "store.update callback", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	for _, name := range spec.Names() {
		cv, err := sandbox.FromLua(vt.RawGetString(name))
		if err != nil {
			return codec.Nil, lmberr.Wrap(lmberr.KindValueCodec, "store.update result for "+name, err)
		}
		v[name] = cv
	}

	result, err := sandbox.FromLua(ret)
	if err != nil {
		return codec.Nil, lmberr.Wrap(lmberr.KindValueCodec, "store.update return value", err)
	}
	return result, nil
}

// buildSpec converts a Lua key-spec table (and optional trailing defaults
// table) into a store.Spec: 1..n positional entries name string keys from
// the table's array part; string keys in the table's hash part are named
// entries with an inline default.
func buildSpec(specTable *lua.LTable, defaults *lua.LTable) (store.Spec, error) {
	n := specTable.Len()
	positional := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		name, ok := specTable.RawGetInt(i).(lua.LString)
		if !ok {
			return store.Spec{}, fmt.Errorf("store.update: positional spec entry %d is not a string", i)
		}
		positional = append(positional, string(name))
	}

	var entries []store.KeyEntry
	var namedErr error
	specTable.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok || namedErr != nil {
			return
		}
		cv, err := sandbox.FromLua(v)
		if err != nil {
			namedErr = err
			return
		}
		entries = append(entries, store.KeyEntry{Name: string(name), Default: cv, HasDefault: true})
	})
	if namedErr != nil {
		return store.Spec{}, namedErr
	}
	for _, name := range positional {
		entries = append(entries, store.KeyEntry{Name: name})
	}

	spec := store.NewSpec(entries...)
	if defaults != nil {
		vals := make([]codec.Value, defaults.Len())
		for i := 1; i <= defaults.Len(); i++ {
			cv, err := sandbox.FromLua(defaults.RawGetInt(i))
			if err != nil {
				return store.Spec{}, err
			}
			vals[i-1] = cv
		}
		spec = spec.ApplyTrailingDefaults(vals)
	}
	return spec, nil
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}
