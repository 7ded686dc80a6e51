package frontmatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/henry40408/lmb/internal/codec"
)

// valueParser is a minimal recursive-descent scanner over one front-matter
// RHS: string/number/bool/nil literals and `{...}` tables (array-style and
// name=value-style entries, matching the Lua table-constructor shapes
// front-matter authors actually write).
type valueParser struct {
	s   string
	pos int
}

func (p *valueParser) parseOne() (codec.Value, error) {
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return codec.Nil, err
	}
	p.skipSpace()
	return v, nil
}

func (p *valueParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *valueParser) peek() (byte, bool) {
	if p.pos >= len(p.s) {
		return 0, false
	}
	return p.s[p.pos], true
}

func (p *valueParser) parseValue() (codec.Value, error) {
	p.skipSpace()
	b, ok := p.peek()
	if !ok {
		return codec.Nil, fmt.Errorf("frontmatter: unexpected end of value")
	}
	switch {
	case b == '"' || b == '\'':
		s, err := p.parseString(b)
		if err != nil {
			return codec.Nil, err
		}
		return codec.String(s), nil
	case b == '{':
		return p.parseTable()
	case strings.HasPrefix(p.s[p.pos:], "true"):
		p.pos += 4
		return codec.Bool(true), nil
	case strings.HasPrefix(p.s[p.pos:], "false"):
		p.pos += 5
		return codec.Bool(false), nil
	case strings.HasPrefix(p.s[p.pos:], "nil"):
		p.pos += 3
		return codec.Nil, nil
	case b == '-' || (b >= '0' && b <= '9'):
		return p.parseNumber()
	default:
		return codec.Nil, fmt.Errorf("frontmatter: unrecognized value %q", p.s[p.pos:])
	}
}

func (p *valueParser) parseString(quote byte) (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for {
		if p.pos >= len(p.s) {
			return "", fmt.Errorf("frontmatter: unterminated string literal")
		}
		c := p.s[p.pos]
		if c == quote {
			p.pos++
			return sb.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.s) {
			p.pos++
			sb.WriteByte(p.s[p.pos])
			p.pos++
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
}

func (p *valueParser) parseNumber() (codec.Value, error) {
	start := p.pos
	if p.s[p.pos] == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	raw := p.s[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return codec.Nil, fmt.Errorf("frontmatter: invalid number %q: %w", raw, err)
		}
		return codec.Float(f), nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return codec.Nil, fmt.Errorf("frontmatter: invalid number %q: %w", raw, err)
	}
	return codec.Int(i), nil
}

// parseTable parses `{ v1, v2, k = v3, ... }`, mirroring the value codec's
// sequence-vs-map distinction: entries with no key are appended
// positionally, entries with a `name =` prefix become map keys.
func (p *valueParser) parseTable() (codec.Value, error) {
	p.pos++ // '{'
	var seq []codec.Value
	m := codec.NewMap()
	hasNamed := false

	for {
		p.skipSpace()
		b, ok := p.peek()
		if !ok {
			return codec.Nil, fmt.Errorf("frontmatter: unterminated table literal")
		}
		if b == '}' {
			p.pos++
			break
		}

		if name, isNamed := p.tryParseKey(); isNamed {
			p.skipSpace()
			if b2, ok := p.peek(); !ok || b2 != '=' {
				return codec.Nil, fmt.Errorf("frontmatter: expected '=' after table key %q", name)
			}
			p.pos++ // '='
			v, err := p.parseValue()
			if err != nil {
				return codec.Nil, err
			}
			m.Set(codec.StrKey(name), v)
			hasNamed = true
		} else {
			v, err := p.parseValue()
			if err != nil {
				return codec.Nil, err
			}
			seq = append(seq, v)
		}

		p.skipSpace()
		if b2, ok := p.peek(); ok && (b2 == ',' || b2 == ';') {
			p.pos++
		}
	}

	if hasNamed {
		for i, v := range seq {
			m.Set(codec.IntKey(int64(i+1)), v)
		}
		return m, nil
	}
	return codec.Seq(seq), nil
}

// tryParseKey attempts to read a bareword table key (identifier) followed
// eventually by '='. It rewinds on failure so the caller can fall back to
// parsing a positional value instead.
func (p *valueParser) tryParseKey() (string, bool) {
	save := p.pos
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		p.pos = save
		return "", false
	}
	name := p.s[start:p.pos]
	peekPos := p.pos
	for peekPos < len(p.s) && (p.s[peekPos] == ' ' || p.s[peekPos] == '\t') {
		peekPos++
	}
	if peekPos >= len(p.s) || p.s[peekPos] != '=' {
		p.pos = save
		return "", false
	}
	return name, true
}
