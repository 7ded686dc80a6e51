package store

import "github.com/henry40408/lmb/internal/codec"

// KeyEntry is one entry of an update key spec: a key name to load into the
// mutable table, with an optional inline default.
type KeyEntry struct {
	Name       string
	Default    codec.Value
	HasDefault bool
}

// Spec is the key spec accepted by Update: a mixed list of positional key
// names (load-or-nil) and named entries (load-or-default), per
// CONTRACT_STORE.md §"update semantics".
type Spec struct {
	Entries []KeyEntry
}

// NewSpec builds a Spec from entries in the order they were written in the
// calling script.
func NewSpec(entries ...KeyEntry) Spec {
	return Spec{Entries: entries}
}

// Positional appends a bare key name with no inline default.
func (s Spec) Positional(name string) Spec {
	s.Entries = append(s.Entries, KeyEntry{Name: name})
	return s
}

// Named appends a key name with an inline default.
func (s Spec) Named(name string, def codec.Value) Spec {
	s.Entries = append(s.Entries, KeyEntry{Name: name, Default: def, HasDefault: true})
	return s
}

// ApplyTrailingDefaults fills in defaults for positional entries (those
// without an inline default) from defaults, matched in positional order.
// An inline named default always wins over a trailing one for the same
// entry — this is the pinned resolution of spec.md's Open Question on
// update key-spec default precedence (see DESIGN.md).
func (s Spec) ApplyTrailingDefaults(defaults []codec.Value) Spec {
	pos := 0
	out := make([]KeyEntry, len(s.Entries))
	copy(out, s.Entries)
	for i, e := range out {
		if e.HasDefault {
			continue
		}
		if pos < len(defaults) {
			out[i] = KeyEntry{Name: e.Name, Default: defaults[pos], HasDefault: true}
		}
		pos++
	}
	return Spec{Entries: out}
}

// Names returns the spec's key names in declaration order.
func (s Spec) Names() []string {
	names := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		names[i] = e.Name
	}
	return names
}
