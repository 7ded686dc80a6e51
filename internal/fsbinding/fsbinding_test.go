package fsbinding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/scheduler"
)

func newTestState(t *testing.T) (*lua.LState, *scheduler.Scheduler) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	sched := scheduler.New(L)
	L.PreloadModule("@lmb/fs", func(L *lua.LState) int {
		L.Push(Loader(nil)(L))
		return 1
	})
	return L, sched
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "hello.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "hello world")
		return fs.read_file("` + path + `"), fs.exists("` + path + `")
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("hello world"), results[0])
	assert.Equal(t, lua.LBool(true), results[1])
}

func TestOpenReadWriteSeekClose(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "rw.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		local h = fs.open("` + path + `", "w+")
		h:write("abcdef")
		h:seek("set", 0)
		local data = h:read("*a")
		h:close()
		return data
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("abcdef"), results[0])
}

func TestOpenMissingFileReturnsNilError(t *testing.T) {
	L, sched := newTestState(t)

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		local h, err = fs.open("/nonexistent/path/xyz", "r")
		return h, err ~= nil
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, results[0])
	assert.Equal(t, lua.LBool(true), results[1])
}

func TestWriteOnReadOnlyHandleRaisesWrongMode(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "ro.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "x")
		local h = fs.open("` + path + `", "r")
		h:write("y")
	`)
	require.NoError(t, err)

	_, err = sched.RunTask(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong_mode")
}

func TestDoubleCloseRaisesClosedFile(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "c.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "x")
		local h = fs.open("` + path + `", "r")
		h:close()
		h:close()
	`)
	require.NoError(t, err)

	_, err = sched.RunTask(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed_file")
}

func TestLinesIteratesUntilEOF(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "lines.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "a\nb\nc\n")
		local out = {}
		for line in fs.lines("` + path + `") do
			table.insert(out, line)
		end
		return out[1], out[2], out[3], #out
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("a"), results[0])
	assert.Equal(t, lua.LString("b"), results[1])
	assert.Equal(t, lua.LString("c"), results[2])
	assert.Equal(t, lua.LNumber(3), results[3])
}

func TestTypeReportsFileThenClosedFile(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "t.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "x")
		local h = fs.open("` + path + `", "r")
		local before = fs.type(h)
		h:close()
		local after = fs.type(h)
		local none = fs.type(42)
		return before, after, none
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("file"), results[0])
	assert.Equal(t, lua.LString("closed file"), results[1])
	assert.Equal(t, lua.LNil, results[2])
}

func TestStatReportsSizeAndKind(t *testing.T) {
	L, sched := newTestState(t)
	path := filepath.Join(t.TempDir(), "s.txt")

	fn, err := L.LoadString(`
		local fs = require("@lmb/fs")
		fs.write_file("` + path + `", "12345")
		local info = fs.stat("` + path + `")
		return info.size, info.is_file, info.is_dir
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(5), results[0])
	assert.Equal(t, lua.LBool(true), results[1])
	assert.Equal(t, lua.LBool(false), results[2])
}
