package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmblog"
)

func newTestState(t *testing.T, buf *bytes.Buffer, targets ...Target) *lua.LState {
	t.Helper()
	log := lmblog.New(lmblog.EvalMeta{EvalID: "t1"}).WithOutput(buf)
	L := lua.NewState()
	t.Cleanup(L.Close)
	L.PreloadModule("@lmb/logging", func(L *lua.LState) int {
		L.Push(Loader(log, targets...)(L))
		return 1
	})
	return L
}

func lastLine(buf *bytes.Buffer) map[string]any {
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	var v map[string]any
	_ = json.Unmarshal([]byte(lines[len(lines)-1]), &v)
	return v
}

func TestInfoTabJoinsArgs(t *testing.T) {
	var buf bytes.Buffer
	L := newTestState(t, &buf)

	fn, err := L.LoadString(`
		local logging = require("@lmb/logging")
		logging.info("hello", "world", 42)
	`)
	require.NoError(t, err)
	require.NoError(t, L.CallByParam(lua.P{Fn: fn, NRet: 0}))

	entry := lastLine(&buf)
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "hello\tworld\t42", entry["message"])
}

func TestTableArgIsJSONSerialized(t *testing.T) {
	var buf bytes.Buffer
	L := newTestState(t, &buf)

	fn, err := L.LoadString(`
		local logging = require("@lmb/logging")
		logging.warn("payload", {a=1})
	`)
	require.NoError(t, err)
	require.NoError(t, L.CallByParam(lua.P{Fn: fn, NRet: 0}))

	entry := lastLine(&buf)
	require.Equal(t, "warn", entry["level"])
	require.Contains(t, entry["message"], "payload\t")
	require.Contains(t, entry["message"], `"a":1`)
}

func TestDebugBelowThresholdIsDropped(t *testing.T) {
	var buf bytes.Buffer
	L := newTestState(t, &buf, Target{Name: "", Min: LevelInfo})

	fn, err := L.LoadString(`
		local logging = require("@lmb/logging")
		logging.debug("should not appear")
		logging.trace("should not appear either")
		logging.info("should appear")
	`)
	require.NoError(t, err)
	require.NoError(t, L.CallByParam(lua.P{Fn: fn, NRet: 0}))

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear")
}

func TestErrorLevelAlwaysPasses(t *testing.T) {
	var buf bytes.Buffer
	L := newTestState(t, &buf, Target{Name: "", Min: LevelError})

	fn, err := L.LoadString(`
		local logging = require("@lmb/logging")
		logging.info("dropped")
		logging.error("boom")
	`)
	require.NoError(t, err)
	require.NoError(t, L.CallByParam(lua.P{Fn: fn, NRet: 0}))

	entry := lastLine(&buf)
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "boom", entry["message"])
}
