package httpclient

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// parsePath matches path against pattern. Patterns use {name} for one path
// segment and {*name} as a catch-all capturing the remainder (including
// any further "/"s). Matching is segment-exact apart from captures;
// segment counts must agree unless a catch-all is present. Returns (nil,
// false) on no match, ({}, true) for a capture-free pattern that matches.
func parsePath(path, pattern string) (map[string]string, bool) {
	pathSegs := splitSegments(path)
	patSegs := splitSegments(pattern)

	captures := make(map[string]string)
	pi := 0
	for pi < len(patSegs) {
		seg := patSegs[pi]
		if strings.HasPrefix(seg, "{*") && strings.HasSuffix(seg, "}") {
			name := seg[2 : len(seg)-1]
			if pi != len(patSegs)-1 {
				// catch-all must be the final segment; treat as no-match
				// rather than silently dropping trailing pattern segments.
				return nil, false
			}
			if pi >= len(pathSegs) {
				return nil, false
			}
			captures[name] = strings.Join(pathSegs[pi:], "/")
			return captures, true
		}
		if pi >= len(pathSegs) {
			return nil, false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			captures[name] = pathSegs[pi]
		} else if seg != pathSegs[pi] {
			return nil, false
		}
		pi++
	}
	if pi != len(pathSegs) {
		return nil, false
	}
	return captures, true
}

func splitSegments(s string) []string {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func luaParsePath(L *lua.LState) int {
	path := L.CheckString(1)
	pattern := L.CheckString(2)
	captures, ok := parsePath(path, pattern)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	for k, v := range captures {
		t.RawSetString(k, lua.LString(v))
	}
	L.Push(t)
	return 1
}
