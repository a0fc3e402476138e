package grammar

import "github.com/arcanabuilder/arcana/internal/token"

// NodeKind distinguishes the three shapes a terminal node can take:
// a fixed alternation of token kinds, the wildcard ANY, or OPT_NEWLINE.
type NodeKind int

const (
	nodeFixed NodeKind = iota
	nodeAny
	nodeOptNewline
)

// Node is one position of a Rule: an ordered list of "terminal nodes",
// each of which is a set of acceptable token kinds.
type Node struct {
	kind  NodeKind
	kinds map[token.Kind]bool
}

// Accepts reports whether a fixed node would consume a token of kind k.
func (n Node) Accepts(k token.Kind) bool {
	if n.kind != nodeFixed {
		return false
	}
	return n.kinds[k]
}

// KindNames returns the human-readable alternation this node accepts,
// used to build the "expected" set of a grammar error.
func (n Node) KindNames() []string {
	switch n.kind {
	case nodeAny:
		return []string{"ANY"}
	case nodeOptNewline:
		return []string{"NEWLINE?"}
	}
	names := make([]string, 0, len(n.kinds))
	for k := range n.kinds {
		names = append(names, k.String())
	}
	return names
}

// Name identifies a production rule.
type Name string

const (
	VariableAssign Name = "VARIABLE_ASSIGN"
	VariableJoin   Name = "VARIABLE_JOIN"
	EmptyLine      Name = "EMPTY_LINE"
	Attribute      Name = "ATTRIBUTE"
	TaskDecl       Name = "TASK_DECL"
	Import         Name = "IMPORT"
	Using          Name = "USING"
	Mapping        Name = "MAPPING"
	Assert         Name = "ASSERT"
	AssertBare     Name = "ASSERT_BARE"
)

// Rule is a named production: an ordered list of terminal nodes.
type Rule struct {
	Name  Name
	Nodes []Node

	// BraceAware marks the rule whose ANY region tracks curly-brace depth
	// (only TASK_DECL's instruction body).
	BraceAware bool
}

// Builder assembles a Rule with ergonomic method chaining: `.Then(...)`
// opens a new node, `.Or(...)` widens the alternation of the last node.
type Builder struct {
	nodes      []Node
	braceAware bool
}

// NewRule starts a fresh rule builder.
func NewRule() *Builder {
	return &Builder{}
}

// Then opens a new fixed node accepting any of kinds.
func (b *Builder) Then(kinds ...token.Kind) *Builder {
	b.nodes = append(b.nodes, newFixed(kinds...))
	return b
}

// Or widens the alternation of the most recently opened node.
func (b *Builder) Or(kinds ...token.Kind) *Builder {
	if len(b.nodes) == 0 {
		return b.Then(kinds...)
	}
	last := &b.nodes[len(b.nodes)-1]
	for _, k := range kinds {
		last.kinds[k] = true
	}
	return b
}

// Any opens the wildcard ANY node.
func (b *Builder) Any() *Builder {
	b.nodes = append(b.nodes, Node{kind: nodeAny})
	return b
}

// OptNewline opens an OPT_NEWLINE node.
func (b *Builder) OptNewline() *Builder {
	b.nodes = append(b.nodes, Node{kind: nodeOptNewline})
	return b
}

// BraceTrack marks the rule being built as one whose ANY region tracks
// curly-brace depth.
func (b *Builder) BraceTrack() *Builder {
	b.braceAware = true
	return b
}

// Build finalizes the rule under the given name.
func (b *Builder) Build(name Name) Rule {
	return Rule{Name: name, Nodes: b.nodes, BraceAware: b.braceAware}
}

func newFixed(kinds ...token.Kind) Node {
	set := make(map[token.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return Node{kind: nodeFixed, kinds: set}
}

// terminators groups the three ways a statement normally ends, used
// throughout the rule table below.
func terminators() []token.Kind {
	return []token.Kind{token.NEWLINE, token.SEMICOLON, token.END_OF_FILE}
}

// DefaultRules returns the full statement rule set, in the fixed
// insertion order the matcher's tie-break relies on: the first rule
// reaching acceptance wins, ties broken by insertion order.
func DefaultRules() []Rule {
	return []Rule{
		// VARIABLE_ASSIGN: IDENT '=' ANY (NEWLINE|';'|EOF)
		NewRule().
			Then(token.IDENT).
			Then(token.ASSIGN).
			Any().
			Then(terminators()...).
			Build(VariableAssign),

		// VARIABLE_JOIN: IDENT '+' '=' ANY (NEWLINE|';'|EOF)
		NewRule().
			Then(token.IDENT).
			Then(token.PLUS).
			Then(token.ASSIGN).
			Any().
			Then(terminators()...).
			Build(VariableJoin),

		// EMPTY_LINE: (NEWLINE|EOF)
		NewRule().
			Then(token.NEWLINE, token.END_OF_FILE).
			Build(EmptyLine),

		// ATTRIBUTE: '@' IDENT ANY (NEWLINE|';')
		NewRule().
			Then(token.AT).
			Then(token.IDENT).
			Any().
			Then(token.NEWLINE, token.SEMICOLON).
			Build(Attribute),

		// TASK_DECL: 'task' IDENT '(' ANY ')' OPT_NEWLINE '{' ANY '}' (NEWLINE|';'|EOF)
		NewRule().
			Then(token.TASK).
			Then(token.IDENT).
			Then(token.LPAREN).
			Any().
			Then(token.RPAREN).
			OptNewline().
			Then(token.LBRACE).
			Any().
			Then(token.RBRACE).
			Then(terminators()...).
			BraceTrack().
			Build(TaskDecl),

		// IMPORT: 'import' ANY (NEWLINE|';'|EOF)
		NewRule().
			Then(token.IMPORT).
			Any().
			Then(terminators()...).
			Build(Import),

		// USING: 'using' IDENT ANY (NEWLINE|';'|EOF)
		NewRule().
			Then(token.USING).
			Then(token.IDENT).
			Any().
			Then(terminators()...).
			Build(Using),

		// MAPPING: 'map' IDENT '-' '>' IDENT (NEWLINE|';'|EOF)
		NewRule().
			Then(token.MAP).
			Then(token.IDENT).
			Then(token.MINUS).
			Then(token.RANGLE).
			Then(token.IDENT).
			Then(terminators()...).
			Build(Mapping),

		// ASSERT: 'assert' '"' ANY '"' (eq|ne|in) '"' ANY '"' '-' '>' '"' ANY '"' (NEWLINE|';'|EOF)
		NewRule().
			Then(token.ASSERT).
			Then(token.QUOTE).
			Any().
			Then(token.QUOTE).
			Then(token.EQ, token.NE, token.IN).
			Then(token.QUOTE).
			Any().
			Then(token.QUOTE).
			Then(token.MINUS).
			Then(token.RANGLE).
			Then(token.QUOTE).
			Any().
			Then(token.QUOTE).
			Then(terminators()...).
			Build(Assert),

		// ASSERT_BARE: same, but the reason payload is not quoted.
		NewRule().
			Then(token.ASSERT).
			Then(token.QUOTE).
			Any().
			Then(token.QUOTE).
			Then(token.EQ, token.NE, token.IN).
			Then(token.QUOTE).
			Any().
			Then(token.QUOTE).
			Then(token.MINUS).
			Then(token.RANGLE).
			Any().
			Then(terminators()...).
			Build(AssertBare),
	}
}
