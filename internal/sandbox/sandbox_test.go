package sandbox

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henry40408/lmb/internal/ioreader"
	"github.com/henry40408/lmb/internal/lmblog"
)

func buildTestState(t *testing.T, opts Options) (*lua.LState, *Builder) {
	t.Helper()
	b := New(lmblog.Discard())
	b.Register("echo", func(L *lua.LState) lua.LValue {
		t := L.NewTable()
		t.RawSetString("value", lua.LString("echoed"))
		return t
	})
	L, _, err := b.Build(opts)
	require.NoError(t, err)
	t.Cleanup(L.Close)
	return L, b
}

func run(t *testing.T, L *lua.LState, src string) {
	t.Helper()
	require.NoError(t, L.DoString(src))
}

func TestSelectiveLibrariesOmitOSPackageDebug(t *testing.T) {
	L, _ := buildTestState(t, Options{})
	assert.Equal(t, lua.LNil, L.GetGlobal("os"))
	assert.Equal(t, lua.LNil, L.GetGlobal("package"))
	assert.Equal(t, lua.LNil, L.GetGlobal("debug"))
}

func TestRequireResolvesRegisteredModule(t *testing.T) {
	L, _ := buildTestState(t, Options{})
	run(t, L, `
		local m = require("@lmb/echo")
		assert(m.value == "echoed")
	`)
}

func TestRequireUnknownModuleFails(t *testing.T) {
	L, _ := buildTestState(t, Options{})
	err := L.DoString(`require("@lmb/nope")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module_not_found")
}

func TestRequireNonLmbPrefixFails(t *testing.T) {
	L, _ := buildTestState(t, Options{})
	err := L.DoString(`require("socket")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module_not_found")
}

func TestGetenvGatedByAllowList(t *testing.T) {
	t.Setenv("LMB_TEST_VAR", "hello")
	L, _ := buildTestState(t, Options{AllowedEnv: AllowedEnv{"LMB_TEST_VAR": true}})
	run(t, L, `
		local lmb = require("@lmb")
		assert(lmb.getenv("LMB_TEST_VAR") == "hello")
		assert(lmb.getenv("PATH") == nil)
	`)
}

func TestPrintTabJoinsAndRendersTablesAsJSON(t *testing.T) {
	var logged []string
	b := New(lmblog.Discard())
	L, _, err := b.Build(Options{})
	require.NoError(t, err)
	t.Cleanup(L.Close)

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = RenderPrintArg(L, L.Get(i))
		}
		logged = append(logged, strings.Join(parts, "\t"))
		return 0
	}))

	run(t, L, `print("a", 1, {x = 1})`)
	require.Len(t, logged, 1)
	assert.True(t, strings.HasPrefix(logged[0], "a\t1\t"))
	assert.Contains(t, logged[0], `"x":1`)
}

func TestIOReadSelectorsDelegateToInputReader(t *testing.T) {
	input := ioreader.New(strings.NewReader("first line\nsecond"))
	L, _ := buildTestState(t, Options{Input: input})
	run(t, L, `
		local line = io.read("*l")
		assert(line == "first line")
		local rest = io.read("*a")
		assert(rest == "second")
	`)
}

func TestReadUnicodeRespectsCodePoints(t *testing.T) {
	input := ioreader.New(strings.NewReader("日本語"))
	L, _ := buildTestState(t, Options{Input: input})
	run(t, L, `
		local lmb = require("@lmb")
		local s = lmb.read_unicode("2")
		assert(s == "日本")
	`)
}

func TestWatchdogPanicsOnInstructionLimit(t *testing.T) {
	L, _ := buildTestState(t, Options{
		Limits: Limits{InstructionQuantum: 10, MaxInstructions: 50},
	})
	err := L.DoString(`
		local i = 0
		while true do
			i = i + 1
		end
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction limit exceeded")
}
