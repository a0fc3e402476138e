// Package parse drives the lexer, grammar matcher, and semantic
// collector together over an arcfile, recursing into `import` targets
// and merging the results.
package parse

import (
	"os"
	"path/filepath"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/grammar"
	"github.com/arcanabuilder/arcana/internal/lexer"
	"github.com/arcanabuilder/arcana/internal/semantic"
)

// File parses the arcfile at path (and, recursively, anything it
// imports) into a fresh Environment. inProgress tracks the absolute
// paths currently being parsed, so an import cycle is reported as a
// *arcerr.IOError rather than recursing forever.
func File(path string) (*semantic.Environment, error) {
	return file(path, map[string]bool{})
}

func file(path string, inProgress map[string]bool) (*semantic.Environment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &arcerr.IOError{Path: path, Message: "resolving arcfile path", Cause: err}
	}
	if inProgress[abs] {
		return nil, &arcerr.IOError{Path: path, Message: "import cycle detected"}
	}
	inProgress[abs] = true
	defer delete(inProgress, abs)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &arcerr.IOError{Path: path, Message: "reading arcfile", Cause: err}
	}

	env := semantic.New()
	env.SourcePath = path
	if err := parseInto(env, path, src, inProgress); err != nil {
		return nil, err
	}
	return env, nil
}

func parseInto(env *semantic.Environment, path string, src []byte, inProgress map[string]bool) error {
	lx := lexer.New(path, src)
	eng := grammar.New(grammar.DefaultRules())
	col := semantic.NewCollector(env, lx)

	for {
		res := eng.MatchNext(lx.Next)
		if res.Failed {
			return &arcerr.GrammarError{
				Pos:        arcerr.SourcePos{File: path, Line: res.Offender.Line, Text: lx.Line(res.Offender.Line)},
				Offending:  res.Offender.Lexeme,
				Expected:   res.Expected,
				AliveRules: res.Alive,
			}
		}

		if err := col.Collect(*res.Match); err != nil {
			return err
		}

		if target := col.TakeImportTarget(); target != "" {
			importPath := target
			if !filepath.IsAbs(importPath) {
				importPath = filepath.Join(filepath.Dir(path), importPath)
			}
			imported, err := file(importPath, inProgress)
			if err != nil {
				return err
			}
			env.Merge(imported)
		}

		if isEOF(*res.Match) {
			return nil
		}
	}
}

func isEOF(m grammar.Match) bool {
	if len(m.Indexes) == 0 {
		return false
	}
	last := m.Indexes[len(m.Indexes)-1]
	return last.Token.Kind.String() == "EOF"
}
