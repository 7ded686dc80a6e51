package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/scheduler"
)

func TestFetchGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	L := lua.NewState()
	defer L.Close()
	sched := scheduler.New(L)

	c := New()
	defer func() { _ = c.Close() }()

	L.PreloadModule("@lmb/http", func(L *lua.LState) int {
		L.Push(c.Loader(sched)(L))
		return 1
	})

	fn, err := L.LoadString(`
		local http = require("@lmb/http")
		local resp = http.fetch("` + srv.URL + `")
		return resp.status, resp.ok, resp.headers["x-test"], resp.json().ok
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, lua.LNumber(200), results[0])
	assert.Equal(t, lua.LBool(true), results[1])
	assert.Equal(t, lua.LString("yes"), results[2])
	assert.Equal(t, lua.LBool(true), results[3])
}

func TestFetchPostBodyTable(t *testing.T) {
	var gotContentType string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	L := lua.NewState()
	defer L.Close()
	sched := scheduler.New(L)
	c := New()
	defer func() { _ = c.Close() }()

	L.PreloadModule("@lmb/http", func(L *lua.LState) int {
		L.Push(c.Loader(sched)(L))
		return 1
	})

	fn, err := L.LoadString(`
		local http = require("@lmb/http")
		local resp = http.fetch("` + srv.URL + `", {method = "POST", body = {name = "lmb"}})
		return resp.status
	`)
	require.NoError(t, err)

	results, err := sched.RunTask(fn)
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(201), results[0])
	assert.Equal(t, "application/json", gotContentType)
	assert.Contains(t, gotBody, "lmb")
}

func TestFetchTransportErrorRaises(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	sched := scheduler.New(L)
	c := New()
	defer func() { _ = c.Close() }()

	L.PreloadModule("@lmb/http", func(L *lua.LState) int {
		L.Push(c.Loader(sched)(L))
		return 1
	})

	fn, err := L.LoadString(`
		local http = require("@lmb/http")
		return http.fetch("http://127.0.0.1:1")
	`)
	require.NoError(t, err)

	_, err = sched.RunTask(fn)
	require.Error(t, err)
}
