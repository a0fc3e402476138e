package glob

import "strings"

// Parse parses a glob pattern under opts.
func Parse(pattern string, opts Options) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, &ParseError{Code: ErrEmptyPattern, Offset: 0}
	}

	norm := normalizeSeparators(pattern, opts)

	absolute := false
	if len(norm) > 0 && norm[0] == opts.Separator {
		absolute = true
		norm = norm[1:]
	}

	rawSegments := strings.Split(norm, string(opts.Separator))
	segments := make([]Segment, 0, len(rawSegments))
	offset := 0
	for _, raw := range rawSegments {
		seg, err := parseSegment(raw, offset, opts)
		if err != nil {
			return Pattern{}, err
		}
		segments = append(segments, seg)
		offset += len(raw) + 1
	}

	p := Pattern{Absolute: absolute, Segments: segments}
	p.Normalized = normalize(absolute, segments, opts.Separator)
	return p, nil
}

// normalizeSeparators rewrites backslashes to the configured separator
// when that separator is '/', so a Windows-style pattern like
// `src\*.c` splits into segments the same way `src/*.c` would.
func normalizeSeparators(pattern string, opts Options) string {
	if opts.Separator != '/' {
		return pattern
	}
	return strings.ReplaceAll(pattern, `\`, "/")
}

func parseSegment(raw string, baseOffset int, opts Options) (Segment, error) {
	if raw == "**" {
		return Segment{Atoms: []Atom{MakeDoubleStar()}}, nil
	}
	if strings.Contains(raw, "**") && opts.DoublestarSegmentOnly {
		return Segment{}, &ParseError{Code: ErrInvalidDoubleStar, Offset: baseOffset}
	}

	var atoms []Atom
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c == '\\' && opts.BackslashEscape:
			if i+1 >= len(raw) {
				return Segment{}, &ParseError{Code: ErrInvalidEscape, Offset: baseOffset + i}
			}
			next := raw[i+1]
			if !isMeta(next) {
				return Segment{}, &ParseError{Code: ErrInvalidEscape, Offset: baseOffset + i}
			}
			atoms = appendLiteral(atoms, string(next))
			i += 2

		case c == '*':
			atoms = append(atoms, MakeStar())
			i++

		case c == '?':
			atoms = append(atoms, MakeQMark())
			i++

		case c == '[':
			cls, consumed, err := parseCharClass(raw[i:], baseOffset+i)
			if err != nil {
				return Segment{}, err
			}
			atoms = append(atoms, MakeCharClass(cls))
			i += consumed

		default:
			atoms = appendLiteral(atoms, string(c))
			i++
		}
	}

	return Segment{Atoms: atoms}, nil
}

func isMeta(b byte) bool {
	switch b {
	case '*', '?', '[', ']', '\\':
		return true
	}
	return false
}

// appendLiteral merges consecutive literal runs into one atom, which
// keeps the segment atom count small for the common "mostly literal"
// pattern shapes the fast paths in match.go look for.
func appendLiteral(atoms []Atom, s string) []Atom {
	if n := len(atoms); n > 0 && atoms[n-1].Kind == Literal {
		atoms[n-1].Literal += s
		return atoms
	}
	return append(atoms, MakeLiteral(s))
}

func parseCharClass(s string, baseOffset int) (Class, int, error) {
	// s[0] == '['
	i := 1
	var cls Class
	if i < len(s) && s[i] == '^' {
		cls.Negated = true
		i++
	}

	closeIdx := strings.IndexByte(s[i:], ']')
	if closeIdx < 0 {
		return Class{}, 0, &ParseError{Code: ErrUnclosedCharClass, Offset: baseOffset}
	}
	body := s[i : i+closeIdx]
	if body == "" {
		return Class{}, 0, &ParseError{Code: ErrEmptyCharClass, Offset: baseOffset}
	}

	j := 0
	for j < len(body) {
		if j+2 < len(body) && body[j+1] == '-' {
			lo, hi := body[j], body[j+2]
			if lo > hi {
				return Class{}, 0, &ParseError{Code: ErrInvalidRange, Offset: baseOffset + j}
			}
			cls.Ranges = append(cls.Ranges, CharRange{Lo: lo, Hi: hi})
			j += 3
			continue
		}
		cls.Singles = append(cls.Singles, body[j])
		j++
	}

	return cls, i + closeIdx + 1, nil
}
