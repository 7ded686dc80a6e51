// Package frontmatter parses a script's optional metadata header (§6): a
// block of leading `--key = value` comment lines consumed by
// documentation-driven tests, not by the evaluator itself. Recognized keys
// are lifted into typed Metadata fields; anything else passes through
// untouched in Metadata.Extra.
//
// Grounded on the teacher's envexpand.go-style single-purpose scanner
// utilities (cli/config/envexpand.go): a small hand-rolled scanner, not a
// general Lua-table parser, since front-matter values are restricted to
// JSON-ish scalars/tables.
package frontmatter

import (
	"regexp"
	"strings"

	"github.com/henry40408/lmb/internal/codec"
)

// Metadata is a script's parsed front-matter header.
type Metadata struct {
	Name         string
	HasName      bool
	AssertReturn codec.Value
	HasAssert    bool
	TimeoutMs    int64
	HasTimeout   bool
	State        codec.Value
	HasState     bool
	Store        bool
	HasStore     bool
	Input        string
	HasInput     bool

	// Extra holds unrecognized key = rawValue lines verbatim, preserving
	// spec.md's "core merely passes recognized keys through" contract.
	Extra map[string]string
}

var headerLine = regexp.MustCompile(`^--\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

// Parse scans src's leading `--key = value` lines (stopping at the first
// line that isn't one) and returns the parsed Metadata plus the remaining
// script source with the header stripped.
func Parse(src string) (Metadata, string, error) {
	md := Metadata{Extra: map[string]string{}}
	lines := strings.Split(src, "\n")
	consumed := 0
	for _, line := range lines {
		m := headerLine.FindStringSubmatch(line)
		if m == nil {
			break
		}
		key, raw := m[1], strings.TrimSpace(m[2])
		if err := assign(&md, key, raw); err != nil {
			return Metadata{}, src, err
		}
		consumed++
	}
	rest := strings.Join(lines[consumed:], "\n")
	return md, rest, nil
}

func assign(md *Metadata, key, raw string) error {
	switch key {
	case "name":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.Name = v.AsString()
		md.HasName = true
	case "assert_return":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.AssertReturn = v
		md.HasAssert = true
	case "timeout":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.TimeoutMs = v.AsInt()
		md.HasTimeout = true
	case "state":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.State = v
		md.HasState = true
	case "store":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.Store = v.AsBool()
		md.HasStore = true
	case "input":
		v, err := parseValue(raw)
		if err != nil {
			return err
		}
		md.Input = v.AsString()
		md.HasInput = true
	default:
		md.Extra[key] = raw
	}
	return nil
}

// parseValue parses one front-matter RHS: a string literal, number,
// boolean, nil, or a `{ ... }` table, via a minimal recursive-descent
// scanner over the token stream — not a full Lua expression parser.
func parseValue(raw string) (codec.Value, error) {
	p := &valueParser{s: raw}
	v, err := p.parseOne()
	if err != nil {
		return codec.Nil, err
	}
	return v, nil
}
