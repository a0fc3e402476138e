// Package semantic builds an Environment from the stream of
// grammar matches produced by internal/grammar, validating attribute
// qualifiers and profile-mangling declaration keys along the way.
package semantic

import (
	"strings"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/grammar"
)

// Source is the subset of *lexer.Lexer the collector needs to recover
// raw text spanned by ANY regions.
type Source interface {
	Path() string
	Line(n int) string
	Slice(n, startCol, endCol int) string
}

// Collector consumes grammar matches in order, accumulating a pending
// attribute list that attaches to the next non-attribute statement.
type Collector struct {
	env     *Environment
	src     Source
	pending []Attribute

	// currentTask tracks which task body we are inside while splitting its
	// instructions into calls.
	currentTask string

	// lastImportTarget holds the raw target text of the most recent
	// IMPORT match; the driver reads and clears it via TakeImportTarget
	// after each Collect call to decide whether to recurse.
	lastImportTarget string
}

// TakeImportTarget returns and clears the pending import target recorded
// by the last IMPORT match, or "" if there wasn't one.
func (c *Collector) TakeImportTarget() string {
	t := c.lastImportTarget
	c.lastImportTarget = ""
	return t
}

// NewCollector returns a Collector that will populate env from matches
// sourced from src.
func NewCollector(env *Environment, src Source) *Collector {
	return &Collector{env: env, src: src}
}

// Env returns the environment being built.
func (c *Collector) Env() *Environment { return c.env }

func (c *Collector) posOf(idx grammar.Index) arcerr.SourcePos {
	return arcerr.SourcePos{
		File: c.src.Path(),
		Line: idx.StartLine,
		Text: c.src.Line(idx.StartLine),
	}
}

// rawText slices the source text spanned by an ANY Index, trimmed of
// surrounding whitespace.
func (c *Collector) rawText(idx grammar.Index) string {
	if idx.StartLine != idx.EndLine {
		// ANY regions never legitimately span lines in this grammar
		// except inside TASK_DECL bodies, handled separately by the
		// instruction splitter.
		return strings.TrimSpace(c.src.Slice(idx.StartLine, idx.StartCol, len(c.src.Line(idx.StartLine))))
	}
	return strings.TrimSpace(c.src.Slice(idx.StartLine, idx.StartCol, idx.EndCol))
}

// Collect processes one grammar.Match, updating the environment and the
// pending attribute list. It returns a *arcerr.SemanticError on failure.
func (c *Collector) Collect(m grammar.Match) error {
	switch m.Rule {
	case grammar.EmptyLine:
		return nil

	case grammar.Attribute:
		return c.collectAttribute(m)

	case grammar.VariableAssign:
		return c.collectAssign(m, false)

	case grammar.VariableJoin:
		return c.collectAssign(m, true)

	case grammar.TaskDecl:
		return c.collectTask(m)

	case grammar.Import:
		// Import resolution (spawning a nested parser and merging the
		// result) is orchestrated by the caller, which has access to the
		// filesystem and import-loop detection; the collector only
		// records the raw target text for the caller to read via
		// TakeImportTarget.
		c.lastImportTarget = c.rawText(m.Indexes[1])
		return nil

	case grammar.Using:
		return c.collectUsing(m)

	case grammar.Mapping:
		return c.collectMapping(m)

	case grammar.Assert, grammar.AssertBare:
		return c.collectAssert(m)
	}
	return nil
}

func (c *Collector) collectAttribute(m grammar.Match) error {
	// Indexes: '@' IDENT ANY (NEWLINE|;)
	nameIdx := m.Indexes[1]
	name := nameIdx.Token.Lexeme
	props := splitProperties(c.rawText(m.Indexes[2]))

	// `@cache` takes its track/store/untrack verb as the first property
	// rather than as part of the attribute name itself: IDENT tokens
	// can't contain hyphens, so `@cache track X` is the real surface
	// syntax behind the cache-track/cache-store/cache-untrack kinds.
	lookupName := name
	if strings.EqualFold(name, "cache") {
		if len(props) == 0 {
			return &arcerr.SemanticError{
				Pos:     c.posOf(nameIdx),
				Message: "attribute @cache requires a track, store, or untrack verb",
			}
		}
		verb := strings.ToLower(props[0])
		switch verb {
		case "track", "store", "untrack":
			lookupName = "cache-" + verb
			props = props[1:]
		default:
			return &arcerr.SemanticError{
				Pos:     c.posOf(nameIdx),
				Message: "unknown @cache verb " + props[0],
				Hint:    "track, store, or untrack",
			}
		}
	}

	kind, qualifier, ok := LookupKind(lookupName)
	if !ok {
		hint := closestMatch(strings.ToLower(name), KnownKinds())
		return &arcerr.SemanticError{
			Pos:     c.posOf(nameIdx),
			Message: "unknown attribute @" + name,
			Hint:    hint,
		}
	}

	if !qualifier.Satisfies(len(props)) {
		return &arcerr.SemanticError{
			Pos:     c.posOf(nameIdx),
			Message: "attribute @" + name + " expects " + qualifier.String() + " properties, got " + itoa(len(props)),
		}
	}

	c.pending = append(c.pending, Attribute{Kind: kind, Properties: props, Line: nameIdx.StartLine})
	return nil
}

func (c *Collector) takePending() []Attribute {
	attrs := c.pending
	c.pending = nil
	return attrs
}

func (c *Collector) collectAssign(m grammar.Match, join bool) error {
	nameIdx := m.Indexes[0]
	name := nameIdx.Token.Lexeme
	// VARIABLE_ASSIGN's ANY sits at position 2 (IDENT '=' ANY ...);
	// VARIABLE_JOIN inserts an extra fixed '+' node, pushing it to 3.
	valuePos := 2
	if join {
		valuePos = 3
	}
	valueIdx := m.Indexes[valuePos]
	value := c.rawText(valueIdx)

	attrs := c.takePending()
	key := MangledKey(name, attrs)

	if existing, ok := c.env.Vtable[key]; ok && join {
		existing.Value = existing.Value + " " + value
		existing.Attributes = append(existing.Attributes, attrs...)
		return nil
	}
	if _, ok := c.env.Vtable[key]; ok && !join {
		return &arcerr.SemanticError{
			Pos:     c.posOf(nameIdx),
			Message: "duplicate definition of variable " + key,
		}
	}

	c.env.Vtable[key] = &Assign{
		Name:       name,
		Value:      value,
		Join:       join,
		Attributes: attrs,
		Line:       nameIdx.StartLine,
	}
	return nil
}

func (c *Collector) collectTask(m grammar.Match) error {
	// Indexes: 'task' IDENT '(' ANY ')' OPT_NEWLINE '{' ANY '}' (term)
	nameIdx := m.Indexes[1]
	name := nameIdx.Token.Lexeme
	paramsIdx := m.Indexes[3]
	bodyIdx := m.Indexes[7]

	attrs := c.takePending()
	key := MangledKey(name, attrs)

	if _, ok := c.env.Ftable[key]; ok {
		return &arcerr.SemanticError{
			Pos:     c.posOf(nameIdx),
			Message: "duplicate definition of task " + key,
		}
	}

	params := splitParams(c.rawText(paramsIdx))
	instructions := c.splitInstructions(bodyIdx)

	task := &Task{
		Name:         name,
		Params:       params,
		Instructions: instructions,
		Attributes:   attrs,
		Line:         nameIdx.StartLine,
	}
	c.env.Ftable[key] = task

	prevTask := c.currentTask
	c.currentTask = name
	for _, instr := range instructions {
		c.collectCallsIn(name, instr, bodyIdx.StartLine)
	}
	c.currentTask = prevTask

	return nil
}

// splitInstructions turns a TASK_DECL body's ANY span into one
// instruction per physical line.
func (c *Collector) splitInstructions(body grammar.Index) []string {
	var out []string
	if body.StartLine == body.EndLine {
		text := strings.TrimSpace(c.src.Slice(body.StartLine, body.StartCol, body.EndCol))
		if text != "" {
			out = append(out, text)
		}
		return out
	}
	first := strings.TrimSpace(c.src.Slice(body.StartLine, body.StartCol, len(c.src.Line(body.StartLine))))
	if first != "" {
		out = append(out, first)
	}
	for line := body.StartLine + 1; line < body.EndLine; line++ {
		text := strings.TrimSpace(c.src.Line(line))
		if text != "" {
			out = append(out, text)
		}
	}
	last := strings.TrimSpace(c.src.Slice(body.EndLine, 0, body.EndCol))
	if last != "" {
		out = append(out, last)
	}
	return out
}

// collectCallsIn reads an instruction as `callee arg1 arg2` and records
// it into ctable[caller@@callee]. Every non-empty instruction is
// recorded this way: the first field is not checked against the known
// tasks, so plain interpreter commands land in ctable as well. The
// instruction text itself is left untouched.
func (c *Collector) collectCallsIn(caller, instr string, line int) {
	fields := strings.Fields(instr)
	if len(fields) == 0 {
		return
	}
	callee := fields[0]
	key := caller + "@@" + callee
	call := &Call{
		Caller: caller,
		Callee: callee,
		Params: fields[1:],
		Line:   line,
	}
	c.env.Ctable[key] = append(c.env.Ctable[key], call)
}

func (c *Collector) collectUsing(m grammar.Match) error {
	// Indexes: 'using' IDENT ANY (term)
	directiveIdx := m.Indexes[1]
	directive := strings.ToLower(directiveIdx.Token.Lexeme)
	argsText := c.rawText(m.Indexes[2])
	args := strings.Fields(argsText)

	switch directive {
	case "profiles":
		c.env.Usings = append(c.env.Usings, Using{Directive: UsingProfiles, Args: args, Line: directiveIdx.StartLine})
		c.env.Profiles = args
	case "threads":
		c.env.Usings = append(c.env.Usings, Using{Directive: UsingThreads, Args: args, Line: directiveIdx.StartLine})
	case "default":
		if len(args) >= 2 && strings.EqualFold(args[0], "interpreter") {
			c.env.Usings = append(c.env.Usings, Using{Directive: UsingDefaultInterpreter, Args: args[1:], Line: directiveIdx.StartLine})
			c.env.Interpreter = args[1]
		}
	default:
		return &arcerr.SemanticError{
			Pos:     c.posOf(directiveIdx),
			Message: "unknown using-directive " + directive,
		}
	}
	return nil
}

func (c *Collector) collectMapping(m grammar.Match) error {
	// Indexes: 'map' IDENT '-' '>' IDENT (term)
	srcIdx := m.Indexes[1]
	dstIdx := m.Indexes[4]
	mapping := Mapping{Src: srcIdx.Token.Lexeme, Dst: dstIdx.Token.Lexeme, Line: srcIdx.StartLine}
	c.env.Mappings = append(c.env.Mappings, mapping)

	if dst, ok := c.env.Vtable[mapping.Dst]; ok {
		dst.Attributes = append(dst.Attributes, Attribute{Kind: KindMap, Properties: []string{mapping.Src}, Line: mapping.Line})
	}
	return nil
}

func (c *Collector) collectAssert(m grammar.Match) error {
	lhsIdx := m.Indexes[2]
	opIdx := m.Indexes[4]
	rhsIdx := m.Indexes[6]

	var reason string
	if m.Rule == grammar.Assert {
		reason = c.rawText(m.Indexes[11])
	} else {
		reason = c.rawText(m.Indexes[10])
	}

	op := AssertOp(strings.ToLower(opIdx.Token.Lexeme))
	a := Assert{
		Line:     lhsIdx.StartLine,
		StmtText: c.src.Line(lhsIdx.StartLine),
		LHS:      c.rawText(lhsIdx),
		Op:       op,
		RHS:      c.rawText(rhsIdx),
		Reason:   reason,
	}
	c.env.Asserts = append(c.env.Asserts, a)
	return nil
}

func splitProperties(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Fields(text)
}

func splitParams(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
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
