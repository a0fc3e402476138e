package grammar

import (
	"sort"

	"github.com/arcanabuilder/arcana/internal/token"
)

// Index records where in the token stream one node of a matched rule
// was satisfied, so the semantic collector can slice raw source back
// out of ANY regions.
type Index struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int

	// Any marks that this Index spans an ANY region rather than a
	// single fixed token.
	Any bool

	// Token is the concrete token consumed at this position; zero value
	// when Any is true and the region absorbed more than one token.
	Token token.Token
}

// Match is the result of successfully recognising one statement.
type Match struct {
	Rule    Name
	Indexes []Index
}

// candidate tracks one rule still alive for the statement currently
// being matched.
type candidate struct {
	rule       Rule
	cursor     int
	braceDepth int
	indexes    []Index

	// anyOpen is true while the candidate is inside an ANY region that
	// has not yet decided whether to close.
	anyOpen   bool
	anyStart  token.Token
	anyLast   token.Token
	anySeen   bool
}

// Engine is the incremental statement matcher:
// on every token it advances every still-viable candidate rule, in
// rule-table order, until exactly one reaches completion or every
// candidate dies.
type Engine struct {
	rules []Rule
}

// New builds a matcher over the given rule set, in the order they
// should be tried. Ties are broken by this order (first to complete
// wins), per the Open Question recorded in DESIGN.md.
func New(rules []Rule) *Engine {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Engine{rules: cp}
}

// Result is returned once per statement: either a completed Match, or
// the token and candidate set alive at the point every rule died.
type Result struct {
	Match    *Match
	Failed   bool
	Offender token.Token
	Expected []string
	Alive    []string
}

// MatchNext consumes tokens from next (called once per token request)
// until one statement is recognised or every candidate dies. It
// returns the recognised Match, or a failed Result describing the
// dead end.
func (e *Engine) MatchNext(next func() token.Token) Result {
	candidates := e.freshCandidates()

	for {
		tok := next()
		var alive []*candidate
		var completed *candidate

		for _, c := range candidates {
			if completed != nil {
				break
			}
			if advanceCandidate(c, tok) {
				alive = append(alive, c)
				if c.cursor >= len(c.rule.Nodes) {
					completed = c
				}
			}
		}

		if completed != nil {
			return Result{Match: &Match{Rule: completed.rule.Name, Indexes: completed.indexes}}
		}

		if len(alive) == 0 {
			return e.failure(tok, candidates)
		}

		candidates = alive

		if tok.Kind == token.END_OF_FILE {
			// EOF repeats forever; if nothing completed on
			// it and candidates remain alive waiting on more input,
			// that is itself a dead end — there is no more input.
			return e.failure(tok, candidates)
		}
	}
}

func (e *Engine) freshCandidates() []*candidate {
	out := make([]*candidate, len(e.rules))
	for i, r := range e.rules {
		out[i] = &candidate{rule: r}
	}
	return out
}

// advanceCandidate applies one token to one candidate's current node,
// with a three-way dispatch: direct match,
// ANY lookahead-close-or-absorb (with TASK_DECL brace-depth override),
// and OPT_NEWLINE consume-then-maybe-reprocess. It returns false if the
// candidate dies on this token.
func advanceCandidate(c *candidate, tok token.Token) bool {
	if c.cursor >= len(c.rule.Nodes) {
		return false
	}
	node := c.rule.Nodes[c.cursor]

	switch node.kind {
	case nodeFixed:
		if !node.Accepts(tok.Kind) {
			return false
		}
		c.indexes = append(c.indexes, Index{
			StartLine: tok.Line, StartCol: tok.StartCol,
			EndLine: tok.Line, EndCol: tok.EndCol,
			Token: tok,
		})
		c.cursor++
		return true

	case nodeAny:
		return advanceAny(c, tok)

	case nodeOptNewline:
		c.cursor++
		if tok.Kind == token.NEWLINE {
			c.indexes = append(c.indexes, Index{
				StartLine: tok.Line, StartCol: tok.StartCol,
				EndLine: tok.Line, EndCol: tok.EndCol,
				Token: tok,
			})
			return true
		}
		// No newline present: the OPT_NEWLINE node is satisfied without
		// consuming, so re-process this same token against the next node.
		return advanceCandidate(c, tok)
	}
	return false
}

// advanceAny implements the ANY wildcard: on each
// token it looks ahead at whether the NEXT node would accept it. If it
// would — and we are not inside a TASK_DECL instruction body that is
// still brace-nested — the ANY region closes and the token is instead
// consumed by the next node. Otherwise the token is absorbed into the
// ANY region and matching continues.
func advanceAny(c *candidate, tok token.Token) bool {
	nextIdx := c.cursor + 1
	insideBraces := c.rule.BraceAware && c.braceDepth > 0

	if nextIdx < len(c.rule.Nodes) && !insideBraces {
		next := c.rule.Nodes[nextIdx]
		if next.kind == nodeFixed && next.Accepts(tok.Kind) {
			closeAny(c)
			c.cursor = nextIdx
			return advanceCandidate(c, tok)
		}
	}

	if c.rule.BraceAware {
		trackBraces(c, tok)
	}
	absorbAny(c, tok)
	return true
}

func trackBraces(c *candidate, tok token.Token) {
	switch tok.Kind {
	case token.LBRACE:
		c.braceDepth++
	case token.RBRACE:
		if c.braceDepth > 0 {
			c.braceDepth--
		}
	}
}

func absorbAny(c *candidate, tok token.Token) {
	if !c.anyOpen {
		c.anyOpen = true
		c.anyStart = tok
	}
	c.anySeen = true
	c.anyLast = tok
}

func closeAny(c *candidate) {
	if c.anySeen {
		c.indexes = append(c.indexes, Index{
			StartLine: c.anyStart.Line, StartCol: c.anyStart.StartCol,
			EndLine: c.anyLast.Line, EndCol: c.anyLast.EndCol,
			Any: true,
		})
	} else {
		c.indexes = append(c.indexes, Index{Any: true})
	}
	c.anyOpen = false
	c.anySeen = false
}

func (e *Engine) failure(tok token.Token, candidates []*candidate) Result {
	expectedSet := map[string]bool{}
	aliveSet := map[string]bool{}
	for _, c := range candidates {
		aliveSet[string(c.rule.Name)] = true
		if c.cursor < len(c.rule.Nodes) {
			for _, n := range c.rule.Nodes[c.cursor].KindNames() {
				expectedSet[n] = true
			}
		}
	}
	return Result{
		Failed:   true,
		Offender: tok,
		Expected: sortedKeys(expectedSet),
		Alive:    sortedKeys(aliveSet),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
