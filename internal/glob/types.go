// Package glob implements Arcana's pattern engine: parsing
// glob patterns into segment/atom trees, matching them against strings
// with and without capture, expanding them against the filesystem, and
// instantiating a destination pattern from captures taken off a source
// match.
package glob

import "strings"

// AtomKind distinguishes the five atom shapes a pattern can contain.
type AtomKind int

const (
	Literal AtomKind = iota
	Star
	QMark
	CharClass
	DoubleStar
)

// CharRange is an inclusive `lo-hi` range inside a character class.
type CharRange struct {
	Lo, Hi byte
}

// Class is a parsed `[...]` character class.
type Class struct {
	Negated bool
	Singles []byte
	Ranges  []CharRange
}

// Matches reports whether b is accepted by the class.
func (c Class) Matches(b byte) bool {
	hit := false
	for _, s := range c.Singles {
		if s == b {
			hit = true
			break
		}
	}
	if !hit {
		for _, r := range c.Ranges {
			if b >= r.Lo && b <= r.Hi {
				hit = true
				break
			}
		}
	}
	if c.Negated {
		return !hit
	}
	return hit
}

// Atom is one unit of a Segment.
type Atom struct {
	Kind    AtomKind
	Literal string
	Class   Class
}

func MakeLiteral(s string) Atom    { return Atom{Kind: Literal, Literal: s} }
func MakeStar() Atom               { return Atom{Kind: Star} }
func MakeQMark() Atom              { return Atom{Kind: QMark} }
func MakeDoubleStar() Atom         { return Atom{Kind: DoubleStar} }
func MakeCharClass(c Class) Atom   { return Atom{Kind: CharClass, Class: c} }

// Segment is one `/`-delimited piece of a pattern: either the
// distinguished `**` (IsDoubleStarOnly) or a list of atoms.
type Segment struct {
	Atoms []Atom
}

// IsDoubleStarOnly reports whether this segment is exactly `**`.
func (s Segment) IsDoubleStarOnly() bool {
	return len(s.Atoms) == 1 && s.Atoms[0].Kind == DoubleStar
}

// Pattern is a fully parsed glob.
type Pattern struct {
	Absolute   bool
	Segments   []Segment
	Normalized string
}

// Options controls parsing.
type Options struct {
	Separator             byte
	BackslashEscape       bool
	DoublestarSegmentOnly bool
}

// DefaultOptions returns the default parse options: `/` separator,
// escapes on, `**` legal only as a whole segment.
func DefaultOptions() Options {
	return Options{Separator: '/', BackslashEscape: true, DoublestarSegmentOnly: true}
}

// ExpandOptions controls filesystem expansion.
type ExpandOptions struct {
	FollowSymlinks bool
	IncludeDotfiles bool
}

// ErrorCode enumerates parse failure reasons.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrEmptyPattern
	ErrInvalidEscape
	ErrUnclosedCharClass
	ErrEmptyCharClass
	ErrInvalidRange
	ErrInvalidDoubleStar
)

// ParseError reports where and why pattern parsing failed.
type ParseError struct {
	Code   ErrorCode
	Offset int
}

func (e *ParseError) Error() string {
	return errorText(e.Code) + " at offset " + itoa(e.Offset)
}

func errorText(c ErrorCode) string {
	switch c {
	case ErrEmptyPattern:
		return "empty pattern"
	case ErrInvalidEscape:
		return "invalid escape sequence"
	case ErrUnclosedCharClass:
		return "unclosed character class"
	case ErrEmptyCharClass:
		return "empty character class"
	case ErrInvalidRange:
		return "invalid character range"
	case ErrInvalidDoubleStar:
		return "** is only legal as a whole path segment"
	}
	return "unknown glob parse error"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// CaptureKind distinguishes what a Capture holds.
type CaptureKind int

const (
	CapturePath CaptureKind = iota
	CaptureSegment
	CaptureChar
)

// Capture is one piece of text bound by a wildcard during a capturing
// match, consumed in order during Instantiate.
type Capture struct {
	Kind  CaptureKind
	Value string
}

// MapErrorCode enumerates glob-to-glob mapping failures.
type MapErrorCode int

const (
	MapErrNone MapErrorCode = iota
	MapErrCapture
	MapErrInstantiate
)

// MapError reports a glob-to-glob mapping failure.
type MapError struct {
	Code MapErrorCode
	Msg  string
}

func (e *MapError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	switch e.Code {
	case MapErrCapture:
		return "source did not match the from-glob"
	case MapErrInstantiate:
		return "capture list did not fit the to-glob"
	}
	return "unknown glob mapping error"
}

func normalize(absolute bool, segments []Segment, sep byte) string {
	var b strings.Builder
	if absolute {
		b.WriteByte(sep)
	}
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte(sep)
		}
		if seg.IsDoubleStarOnly() {
			b.WriteString("**")
			continue
		}
		for _, a := range seg.Atoms {
			switch a.Kind {
			case Literal:
				b.WriteString(a.Literal)
			case Star:
				b.WriteByte('*')
			case QMark:
				b.WriteByte('?')
			case CharClass:
				b.WriteByte('[')
				if a.Class.Negated {
					b.WriteByte('^')
				}
				for _, s := range a.Class.Singles {
					b.WriteByte(s)
				}
				for _, r := range a.Class.Ranges {
					b.WriteByte(r.Lo)
					b.WriteByte('-')
					b.WriteByte(r.Hi)
				}
				b.WriteByte(']')
			}
		}
	}
	return b.String()
}
