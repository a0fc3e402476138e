// Package lexer implements Arcana's single-pass arcfile scanner.
package lexer

import (
	"strings"
	"unicode"

	"github.com/arcanabuilder/arcana/internal/token"
)

// Lexer scans an arcfile byte-by-byte, tracking line/column and retaining
// the physical source lines so downstream components can slice raw
// lexemes out of ANY regions (the only way to recover them).
type Lexer struct {
	src  []byte
	pos  int
	line int // 0-based
	col  int // 0-based

	lines []string // physical source lines, keyed by 0-based line index

	path string
}

// New creates a Lexer over src. path is carried purely for diagnostics.
func New(path string, src []byte) *Lexer {
	return &Lexer{
		src:   src,
		lines: splitLines(src),
		path:  path,
	}
}

// Path returns the source path used for diagnostics.
func (l *Lexer) Path() string { return l.path }

// Line returns the raw physical text of a 0-based line index, or "" if it
// does not exist.
func (l *Lexer) Line(n int) string {
	if n < 0 || n >= len(l.lines) {
		return ""
	}
	return l.lines[n]
}

// Slice recovers the raw source text of line n between the given
// 0-based, end-exclusive column range.
func (l *Lexer) Slice(n, startCol, endCol int) string {
	text := l.Line(n)
	if startCol < 0 {
		startCol = 0
	}
	if endCol > len(text) {
		endCol = len(text)
	}
	if startCol >= endCol {
		return ""
	}
	return text[startCol:endCol]
}

func splitLines(src []byte) []string {
	s := string(src)
	// strings.Split gives one entry per physical line; a file ending in
	// \n also yields a final empty entry after it.
	return strings.Split(s, "\n")
}

func isIdentStart(b byte) bool {
	return b == '_' || unicode.IsLetter(rune(b))
}

func isIdentCont(b byte) bool {
	return b == '_' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Next scans and returns the next token. At end of input it returns
// END_OF_FILE repeatedly.
func (l *Lexer) Next() token.Token {
	for {
		if l.pos >= len(l.src) {
			return l.make(token.END_OF_FILE, "", l.line, l.col, l.col)
		}

		b := l.src[l.pos]

		switch {
		case b == ' ' || b == '\t' || b == '\r':
			l.advance(1)
			continue

		case b == '\\' && l.peek(1) == '\n':
			// line continuation: consumed silently, line counter incremented
			l.advance(2)
			l.line++
			l.col = 0
			continue

		case b == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
			continue

		case b == '\n':
			startCol := l.col
			l.advance(1)
			tok := l.make(token.NEWLINE, "\n", l.line, startCol, startCol+1)
			l.line++
			l.col = 0
			return tok

		case isIdentStart(b):
			return l.scanIdent()

		case isDigit(b):
			return l.scanNumber()

		default:
			if kind, ok := token.Punctuation(b); ok {
				startCol := l.col
				l.advance(1)
				return l.make(kind, string(b), l.line, startCol, startCol+1)
			}
			startCol := l.col
			l.advance(1)
			return l.make(token.UNKNOWN, string(b), l.line, startCol, startCol+1)
		}
	}
}

func (l *Lexer) scanIdent() token.Token {
	start := l.pos
	startCol := l.col
	for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
		l.advance(1)
	}
	lexeme := string(l.src[start:l.pos])
	lowered := strings.ToLower(lexeme)
	if kind, ok := token.Lookup(lowered); ok {
		return l.make(kind, lexeme, l.line, startCol, l.col)
	}
	return l.make(token.IDENT, lexeme, l.line, startCol, l.col)
}

func (l *Lexer) scanNumber() token.Token {
	start := l.pos
	startCol := l.col
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.advance(1)
	}
	return l.make(token.NUMBER, string(l.src[start:l.pos]), l.line, startCol, l.col)
}

func (l *Lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *Lexer) advance(n int) {
	l.pos += n
	l.col += n
}

func (l *Lexer) make(k token.Kind, lexeme string, line, startCol, endCol int) token.Token {
	return token.Token{Kind: k, Lexeme: lexeme, Line: line, StartCol: startCol, EndCol: endCol}
}
