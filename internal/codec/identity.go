package codec

import "reflect"

// identityOf returns the backing-array identity of a slice for cycle
// detection. A nil or empty slice has no identity worth guarding (it
// can't contain itself), so guarded is false in that case.
func identityOf(s []Value) (id uintptr, guarded bool) {
	if len(s) == 0 {
		return 0, false
	}
	return reflect.ValueOf(s).Pointer(), true
}

// identityOfMap returns the map header identity for cycle detection.
func identityOfMap(m map[MapKey]Value) (id uintptr, guarded bool) {
	if len(m) == 0 {
		return 0, false
	}
	return reflect.ValueOf(m).Pointer(), true
}

// withVisited returns a copy of visited with id added, so sibling
// branches of the same container (e.g. two keys of the same map) don't
// spuriously see each other as ancestors — only the path from root to
// the current node matters.
func withVisited(visited map[uintptr]struct{}, id uintptr) map[uintptr]struct{} {
	out := make(map[uintptr]struct{}, len(visited)+1)
	for k := range visited {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}
