// Package httpclient implements the HTTP client binding (C7):
// http:fetch(url, options?) as a yielding scheduler op backed by a bounded
// stdlib http.Client, plus the pure-function parse_path route matcher.
//
// Grounded on the webhook adapter's http.Client usage
// (adapter/webhook/webhook.go): a shared client with a fixed timeout and
// CloseIdleConnections on shutdown, draining and closing response bodies
// via iox.DiscardClose rather than leaking connections.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/iox"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/scheduler"
)

// DefaultTimeout is the client timeout that bounds every fetch() call;
// fetch has no per-call timeout option.
const DefaultTimeout = 30 * time.Second

// Client wraps a pooled http.Client shared across every fetch() call made
// by scripts built from the same sandbox.Builder.
type Client struct {
	http *http.Client
}

// New constructs a Client with a bounded Transport (connection pooling,
// idle-connection limits) suitable for sharing across many evaluations.
func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Loader returns the @lmb/http module loader, binding c and sched.
func (c *Client) Loader(sched *scheduler.Scheduler) sandbox.ModuleLoader {
	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("fetch", L.NewFunction(func(L *lua.LState) int {
			return c.luaFetch(L, sched)
		}))
		mod.RawSetString("parse_path", L.NewFunction(luaParsePath))
		return mod
	}
}

type fetchRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// luaFetch implements http:fetch(url, options?) as a yielding op: the
// request itself runs on a worker goroutine via scheduler.Yield, while the
// calling coroutine suspends.
func (c *Client) luaFetch(L *lua.LState, sched *scheduler.Scheduler) int {
	if _, ok := L.Get(1).(*lua.LTable); ok {
		L.Remove(1) // called as http:fetch(...): drop the module table
	}
	url := L.CheckString(1)
	req, err := buildFetchRequest(L, url)
	if err != nil {
		raiseLmbErr(L, lmberr.Wrap(lmberr.KindHTTPRequestFailed, "build request", err))
		return 0
	}

	return sched.Yield(L, func() ([]lua.LValue, error) {
		resp, err := c.doFetch(req)
		if err != nil {
			return nil, lmberr.Wrap(lmberr.KindHTTPRequestFailed, "fetch "+url, err)
		}
		return []lua.LValue{newResponseTable(L, resp)}, nil
	})
}

func buildFetchRequest(L *lua.LState, url string) (fetchRequest, error) {
	req := fetchRequest{Method: http.MethodGet, URL: url}
	if L.GetTop() < 2 {
		return req, nil
	}
	opts, ok := L.Get(2).(*lua.LTable)
	if !ok {
		return req, nil
	}

	if m, ok := opts.RawGetString("method").(lua.LString); ok && m != "" {
		req.Method = strings.ToUpper(string(m))
	}

	if h, ok := opts.RawGetString("headers").(*lua.LTable); ok {
		req.Headers = make(map[string]string)
		h.ForEach(func(k, v lua.LValue) {
			req.Headers[k.String()] = lua.LVAsString(v)
		})
	}

	switch body := opts.RawGetString("body").(type) {
	case lua.LString:
		req.Body = []byte(body)
	case *lua.LTable:
		cv, err := sandbox.FromLua(body)
		if err != nil {
			return req, err
		}
		b, err := json.Marshal(codecToAny(cv))
		if err != nil {
			return req, err
		}
		req.Body = b
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		if _, set := req.Headers["Content-Type"]; !set {
			req.Headers["Content-Type"] = "application/json"
		}
	}
	return req, nil
}

type fetchResponse struct {
	status  int
	headers http.Header
	body    []byte
}

func (c *Client) doFetch(req fetchRequest) (*fetchResponse, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(context.Background(), req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &fetchResponse{status: resp.StatusCode, headers: resp.Header, body: body}, nil
}

// newResponseTable builds the {status, ok, headers, text(), json(), bytes()}
// response object, with headers lowercased per spec.
func newResponseTable(L *lua.LState, resp *fetchResponse) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("status", lua.LNumber(resp.status))
	t.RawSetString("ok", lua.LBool(resp.status < 400))

	headers := L.NewTable()
	for k, vs := range resp.headers {
		if len(vs) > 0 {
			headers.RawSetString(strings.ToLower(k), lua.LString(vs[0]))
		}
	}
	t.RawSetString("headers", headers)

	t.RawSetString("text", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(string(resp.body)))
		return 1
	}))
	t.RawSetString("bytes", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(string(resp.body)))
		return 1
	}))
	t.RawSetString("json", L.NewFunction(func(L *lua.LState) int {
		var v any
		if err := json.Unmarshal(resp.body, &v); err != nil {
			raiseLmbErr(L, lmberr.Wrap(lmberr.KindHTTPDecodeFailed, "decode response json", err))
			return 0
		}
		cv := anyToCodec(v)
		L.Push(sandbox.ToLua(L, cv))
		return 1
	}))
	return t
}

func raiseLmbErr(L *lua.LState, err *lmberr.Error) {
	L.RaiseError("%s: %s", err.Kind, err.Message)
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
			out[k.String()] = codecToAny(val)
		}
		return out
	default:
		return nil
	}
}

func anyToCodec(v any) codec.Value {
	switch tv := v.(type) {
	case nil:
		return codec.Nil
	case bool:
		return codec.Bool(tv)
	case float64:
		if i := int64(tv); float64(i) == tv {
			return codec.Int(i)
		}
		return codec.Float(tv)
	case string:
		return codec.String(tv)
	case []any:
		items := make([]codec.Value, len(tv))
		for i, item := range tv {
			items[i] = anyToCodec(item)
		}
		return codec.Seq(items)
	case map[string]any:
		m := codec.NewMap()
		for k, item := range tv {
			m.Set(codec.StrKey(k), anyToCodec(item))
		}
		return m
	default:
		return codec.Nil
	}
}
