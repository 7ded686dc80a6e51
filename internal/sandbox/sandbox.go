// Package sandbox implements the sandbox builder (C3): constructs a
// gopher-lua VM with only the base, table, string, math and coroutine
// libraries opened, global replacements, and the @lmb/* module registry,
// per CONTRACT_SANDBOX.md.
//
// Grounded on the Lua-sandboxing discipline in
// other_examples/…ygalsk-keystone-gateway…luaengine/state_pool.go, which
// selectively opens libraries and pools *lua.LState instances for safe
// concurrent reuse; lmb applies the same selective-open discipline per
// evaluation.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/ioreader"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/scheduler"
)

// ModuleLoader constructs the Lua module table for one @lmb/<name> import.
// It is called at most once per VM per module name; the result is cached
// in the VM's own loaded-module table, matching require()'s normal
// memoization semantics.
type ModuleLoader func(L *lua.LState) lua.LValue

// Limits bounds a single evaluation's resource consumption. Gopher-lua
// doesn't meter allocations natively, so InstructionQuantum approximates a
// memory limit indirectly: pathological allocation shows up as
// pathological instruction count.
type Limits struct {
	// InstructionQuantum is the number of VM instructions between hook
	// checks; 0 disables the instruction-count watchdog.
	InstructionQuantum int
	// MaxInstructions is the ceiling before the hook panics with a
	// timeout-tagged error. 0 means unlimited.
	MaxInstructions int64
}

// AllowedEnv is the per-evaluation allow-list gating @lmb:getenv.
type AllowedEnv map[string]bool

// SchedModuleLoader is a ModuleLoader variant for bindings whose calls
// suspend the calling coroutine through the per-evaluation scheduler
// (e.g. @lmb/http's fetch). It receives the scheduler Build creates fresh
// for that evaluation, unlike plain ModuleLoader which only ever sees L.
type SchedModuleLoader func(L *lua.LState, sched *scheduler.Scheduler) lua.LValue

// Builder constructs sandboxed VMs. One Builder is typically shared across
// many evaluations; it holds no per-evaluation state itself.
type Builder struct {
	modules      map[string]ModuleLoader
	schedModules map[string]SchedModuleLoader
	log          *lmblog.Logger
}

// New constructs a Builder with no modules registered. Use Register to
// populate the @lmb/* module table before building VMs.
func New(log *lmblog.Logger) *Builder {
	if log == nil {
		log = lmblog.Discard()
	}
	return &Builder{
		modules:      make(map[string]ModuleLoader),
		schedModules: make(map[string]SchedModuleLoader),
		log:          log,
	}
}

// Register adds a loader for require("@lmb/<name>"). Registering the same
// name twice overwrites the previous loader.
func (b *Builder) Register(name string, loader ModuleLoader) {
	b.modules[name] = loader
}

// RegisterSched adds a scheduler-aware loader for require("@lmb/<name>"),
// for bindings whose Go implementation needs to yield the calling
// coroutine through the evaluation's scheduler.
func (b *Builder) RegisterSched(name string, loader SchedModuleLoader) {
	b.schedModules[name] = loader
}

// Options configures one Build call.
type Options struct {
	Ctx        context.Context
	Input      *ioreader.Reader
	AllowedEnv AllowedEnv
	Limits     Limits
}

// Build constructs a fresh sandboxed *lua.LState plus the scheduler bound
// to it. Callers must Close() the returned state when done.
func (b *Builder) Build(opts Options) (*lua.LState, *scheduler.Scheduler, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	lua.OpenCoroutine(L)
	// Deliberately never OpenOs/OpenIo/OpenPackage/OpenChannel/OpenDebug —
	// this is the whole of lmb's sandbox boundary against ambient OS and
	// native extension access.

	if opts.Ctx != nil {
		L.SetContext(opts.Ctx)
	}

	sched := scheduler.New(L)

	core := L.NewTable()
	b.installPrint(L)
	b.installRequire(L, core, sched)
	b.installGetenv(L, core, opts.AllowedEnv)
	b.installSleep(L, sched)
	b.installIO(L, core, opts.Input)
	b.installWatchdog(L, opts.Limits)

	return L, sched, nil
}

// installPrint routes print to the host logger at info level, tab-joining
// arguments and JSON-serializing tables, matching stock print's layout.
func (b *Builder) installPrint(L *lua.LState) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = RenderPrintArg(L, L.Get(i))
		}
		line := strings.Join(parts, "\t")
		b.log.Info(line, nil)
		return 0
	}))
}

// RenderPrintArg renders one print() argument: tables are JSON-serialized
// via the value codec, everything else falls back to Lua's own tostring
// (e.g. "function: 0x...") per spec.md's recommendation.
func RenderPrintArg(L *lua.LState, v lua.LValue) string {
	if t, ok := v.(*lua.LTable); ok {
		cv, err := FromLua(t)
		if err == nil {
			return renderValueJSON(cv)
		}
	}
	return lua.LVAsString(L.ToStringMeta(v))
}

// installRequire implements require("@lmb/<name>") against the Builder's
// registered module table; unknown names raise module_not_found so pcall
// can catch it. Loaded modules are memoized per-VM. require("@lmb") itself
// (no slash) resolves to core, the table installGetenv/installIO populate
// with getenv/read_unicode.
func (b *Builder) installRequire(L *lua.LState, core *lua.LTable, sched *scheduler.Scheduler) {
	loaded := L.NewTable()
	loaded.RawSetString("@lmb", core)
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if cached := loaded.RawGetString(name); cached != lua.LNil {
			L.Push(cached)
			return 1
		}
		if !strings.HasPrefix(name, "@lmb") {
			L.RaiseError("module_not_found: %s", name)
			return 0
		}
		short := strings.TrimPrefix(name, "@lmb/")
		if loader, ok := b.modules[short]; ok {
			mod := loader(L)
			loaded.RawSetString(name, mod)
			L.Push(mod)
			return 1
		}
		if loader, ok := b.schedModules[short]; ok {
			mod := loader(L, sched)
			loaded.RawSetString(name, mod)
			L.Push(mod)
			return 1
		}
		raiseLmbErr(L, lmberr.New(lmberr.KindModuleNotFound, "no such module: "+name))
		return 0
	}))
}

// installGetenv implements @lmb's getenv(name), returning the environment
// value only if name is present in allowed.
func (b *Builder) installGetenv(L *lua.LState, core *lua.LTable, allowed AllowedEnv) {
	core.RawSetString("getenv", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if allowed == nil || !allowed[name] {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(lookupEnv(name)))
		return 1
	}))
}

// installSleep wires the sleep_ms(n) global to the scheduler.
func (b *Builder) installSleep(L *lua.LState, sched *scheduler.Scheduler) {
	L.SetGlobal("sleep_ms", L.NewFunction(func(L *lua.LState) int {
		ms := int64(L.CheckNumber(1))
		return sched.SleepMs(L, ms)
	}))
}

// installIO replaces io.read with the input reader's selector-based reads
// and installs @lmb:read_unicode.
func (b *Builder) installIO(L *lua.LState, core *lua.LTable, input *ioreader.Reader) {
	if input == nil {
		return
	}
	ioTable := L.NewTable()
	ioTable.RawSetString("read", L.NewFunction(func(L *lua.LState) int {
		selector := "*l"
		if L.GetTop() >= 1 {
			selector = selectorArg(L.Get(1))
		}
		return luaIORead(L, input, selector)
	}))
	L.SetGlobal("io", ioTable)

	core.RawSetString("read_unicode", L.NewFunction(func(L *lua.LState) int {
		selector := selectorArg(L.Get(1))
		s, ok, err := input.ReadUnicode(selector)
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "read_unicode", err))
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(s))
		return 1
	}))
}

func selectorArg(v lua.LValue) string {
	switch lv := v.(type) {
	case lua.LString:
		return string(lv)
	case lua.LNumber:
		return fmt.Sprintf("%d", int64(lv))
	default:
		return "*l"
	}
}

func luaIORead(L *lua.LState, input *ioreader.Reader, selector string) int {
	switch selector {
	case "*a":
		s, err := input.ReadAll()
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "io.read *a", err))
			return 0
		}
		L.Push(lua.LString(s))
		return 1
	case "*l":
		line, ok, err := input.ReadLine()
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "io.read *l", err))
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(line))
		return 1
	case "*n":
		n, ok, err := input.ReadNumber()
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "io.read *n", err))
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(n))
		return 1
	default:
		n, err := parseSelectorCount(selector)
		if err != nil {
			L.RaiseError("invalid read selector: %s", selector)
			return 0
		}
		data, ok, err := input.ReadBytes(n)
		if err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "io.read n", err))
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(string(data)))
		return 1
	}
}

// installWatchdog installs an instruction-count hook that raises a
// timeout-tagged Lua error once limits.MaxInstructions is exceeded — lmb's
// memory-limit approximation, since gopher-lua exposes no heap-byte
// counter (documented in DESIGN.md). It raises through L.RaiseError rather
// than a bare Go panic so the VM's own call-stack unwinding (the same path
// every other lmberr raise in this file goes through) handles it instead of
// escaping as an uncaught panic.
func (b *Builder) installWatchdog(L *lua.LState, limits Limits) {
	if limits.InstructionQuantum <= 0 || limits.MaxInstructions <= 0 {
		return
	}
	var count int64
	L.SetHook(func(L *lua.LState, ar *lua.Debug) {
		count += int64(limits.InstructionQuantum)
		if count >= limits.MaxInstructions {
			raiseLmbErr(L, lmberr.New(lmberr.KindTimeout, "instruction limit exceeded"))
		}
	}, lua.MaskCount, limits.InstructionQuantum)
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
}

func lookupEnv(name string) string {
	v, _ := os.LookupEnv(name)
	return v
}

// renderValueJSON renders a value-codec Value as JSON for print()'s table
// formatting. Unrepresentable sub-values never reach here since FromLua
// would have already failed the whole conversion.
func renderValueJSON(cv codec.Value) string {
	b, err := json.Marshal(codecToAny(cv))
	if err != nil {
		return "<table>"
	}
	return string(b)
}

func codecToAny(cv codec.Value) any {
	switch cv.Kind() {
	case codec.KindNil:
		return nil
	case codec.KindBool:
		return cv.AsBool()
	case codec.KindInt:
		return cv.AsInt()
	case codec.KindFloat:
		return cv.AsFloat()
	case codec.KindString:
		return cv.AsString()
	case codec.KindSeq:
		items := cv.AsSeq()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = codecToAny(item)
		}
		return out
	case codec.KindMap:
		out := make(map[string]any, cv.Len())
		for _, k := range cv.Keys() {
			val, _ := cv.Get(k)
			name := k.Str
			if k.IsInt {
				name = strconv.FormatInt(k.Int, 10)
			}
			out[name] = codecToAny(val)
		}
		return out
	default:
		return nil
	}
}

// parseSelectorCount parses an io.read selector that names a plain byte
// count, e.g. "10".
func parseSelectorCount(selector string) (int, error) {
	n, err := strconv.Atoi(selector)
	if err != nil {
		return 0, fmt.Errorf("sandbox: invalid read selector %q", selector)
	}
	return n, nil
}
