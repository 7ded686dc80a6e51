package fsbinding

import (
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Loader returns the @lmb/fs module loader. s3 may be nil, in which case
// s3_get/s3_put raise fs_io rather than silently no-op-ing.
func Loader(s3 *S3Client) sandbox.ModuleLoader {
	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("open", L.NewFunction(luaOpen))
		mod.RawSetString("read_file", L.NewFunction(luaReadFile))
		mod.RawSetString("write_file", L.NewFunction(luaWriteFile))
		mod.RawSetString("exists", L.NewFunction(luaExists))
		mod.RawSetString("stat", L.NewFunction(luaStat))
		mod.RawSetString("list", L.NewFunction(luaList))
		mod.RawSetString("readdir", L.NewFunction(luaList))
		mod.RawSetString("mkdir", L.NewFunction(luaMkdir))
		mod.RawSetString("remove", L.NewFunction(luaRemove))
		mod.RawSetString("lines", L.NewFunction(luaLinesFile))
		mod.RawSetString("type", L.NewFunction(luaType))
		mod.RawSetString("s3_get", L.NewFunction(func(L *lua.LState) int {
			return s3.luaGet(L)
		}))
		mod.RawSetString("s3_put", L.NewFunction(func(L *lua.LState) int {
			return s3.luaPut(L)
		}))
		return mod
	}
}

func luaReadFile(L *lua.LState) int {
	path := L.CheckString(1)
	b, err := os.ReadFile(path)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "read_file "+path, err))
		return 0
	}
	L.Push(lua.LString(string(b)))
	return 1
}

func luaWriteFile(L *lua.LState) int {
	path := L.CheckString(1)
	data := L.CheckString(2)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "write_file "+path, err))
		return 0
	}
	L.Push(lua.LNumber(len(data)))
	return 1
}

func luaExists(L *lua.LState) int {
	path := L.CheckString(1)
	_, err := os.Stat(path)
	L.Push(lua.LBool(err == nil))
	return 1
}

func luaStat(L *lua.LState) int {
	path := L.CheckString(1)
	info, err := os.Stat(path)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "stat "+path, err))
		return 0
	}
	t := L.NewTable()
	t.RawSetString("size", lua.LNumber(info.Size()))
	t.RawSetString("is_file", lua.LBool(!info.IsDir()))
	t.RawSetString("is_dir", lua.LBool(info.IsDir()))
	t.RawSetString("mod_time", lua.LNumber(info.ModTime().Unix()))
	L.Push(t)
	return 1
}

func luaList(L *lua.LState) int {
	path := L.CheckString(1)
	entries, err := os.ReadDir(path)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "list "+path, err))
		return 0
	}
	t := L.NewTable()
	for i, e := range entries {
		t.RawSetInt(i+1, lua.LString(e.Name()))
	}
	L.Push(t)
	return 1
}

func luaMkdir(L *lua.LState) int {
	path := L.CheckString(1)
	if err := os.MkdirAll(path, 0o755); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "mkdir "+path, err))
		return 0
	}
	return 0
}

func luaRemove(L *lua.LState) int {
	path := L.CheckString(1)
	if err := os.Remove(path); err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "remove "+path, err))
		return 0
	}
	return 0
}

// luaLinesFile implements the module-level lines(path) convenience:
// opens path read-only and returns a closure iterator, closing the
// underlying file once the iterator is exhausted.
func luaLinesFile(L *lua.LState) int {
	path := L.CheckString(1)
	f, err := os.Open(path)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "lines "+path, err))
		return 0
	}
	iter := L.NewFunction(func(L *lua.LState) int {
		line, ok, rerr := readLine(f)
		if rerr != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindFSIO, "lines "+path, rerr))
			return 0
		}
		if !ok {
			_ = f.Close()
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(line))
		return 1
	})
	L.Push(iter)
	return 1
}

// luaType implements the free function type(v) → "file" | "closed file" |
// nil.
func luaType(L *lua.LState) int {
	t, ok := L.Get(1).(*lua.LTable)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	kind := t.RawGetString("__kind")
	if kind == lua.LNil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(kind)
	return 1
}
