package semantic

import "strings"

// Qualifier constrains how many properties an attribute of a given kind
// may carry.
type Qualifier int

const (
	// None means the attribute takes no properties: `@public`.
	None Qualifier = iota
	// Optional means zero or one property.
	Optional
	// Required means one or more properties.
	Required
	// ZeroOrMore means any number of properties, including none: `@main`,
	// which may list zero or more sub-tasks to run before the body.
	ZeroOrMore
)

// Kind is the case-folded name of a known attribute.
type Kind string

const (
	KindPrecompiler  Kind = "precompiler"
	KindPostcompiler Kind = "postcompiler"
	KindProfile      Kind = "profile"
	KindPublic       Kind = "public"
	KindPrivate      Kind = "private"
	KindFolder       Kind = "folder"
	KindFile         Kind = "file"
	KindAlways       Kind = "always"
	KindDependency   Kind = "dependency"
	KindCallable     Kind = "callable"
	KindMain         Kind = "main"
	KindEcho         Kind = "echo"
	KindCacheTrack   Kind = "cache-track"
	KindCacheStore   Kind = "cache-store"
	KindCacheUntrack Kind = "cache-untrack"
	KindMultithread  Kind = "multithread"
	KindGlob         Kind = "glob"
	KindMap          Kind = "map"
	KindRequires     Kind = "requires"
	KindInterpreter  Kind = "interpreter"
)

// qualifiers is the fixed dictionary the collector validates attribute
// arity against.
var qualifiers = map[Kind]Qualifier{
	KindPrecompiler:  Required,
	KindPostcompiler: Required,
	KindProfile:      Required,
	KindPublic:       None,
	KindPrivate:      None,
	KindFolder:       Optional,
	KindFile:         Optional,
	KindAlways:       None,
	KindDependency:   Required,
	KindCallable:     None,
	KindMain:         ZeroOrMore,
	KindEcho:         None,
	KindCacheTrack:   Required,
	KindCacheStore:   Required,
	KindCacheUntrack: Required,
	KindMultithread:  None,
	KindGlob:         None,
	KindMap:          Required,
	KindRequires:     Required,
	KindInterpreter:  Required,
}

// KnownKinds lists every attribute name recognised by the collector, used
// both for lookup and for closest-match hinting on unknown attributes.
func KnownKinds() []string {
	out := make([]string, 0, len(qualifiers))
	for k := range qualifiers {
		out = append(out, string(k))
	}
	return out
}

// LookupKind resolves a case-folded attribute name to its Kind and
// qualifier rule.
func LookupKind(name string) (Kind, Qualifier, bool) {
	k := Kind(strings.ToLower(name))
	q, ok := qualifiers[k]
	return k, q, ok
}

// Satisfies reports whether n properties is legal under q.
func (q Qualifier) Satisfies(n int) bool {
	switch q {
	case None:
		return n == 0
	case Optional:
		return n == 0 || n == 1
	case Required:
		return n >= 1
	case ZeroOrMore:
		return true
	}
	return false
}

func (q Qualifier) String() string {
	switch q {
	case None:
		return "NONE"
	case Optional:
		return "OPTIONAL"
	case Required:
		return "REQUIRED"
	case ZeroOrMore:
		return "ZERO_OR_MORE"
	}
	return "UNKNOWN"
}

// Attribute is one collected `@kind prop1 prop2` annotation, still
// pending attachment to the next declaration.
type Attribute struct {
	Kind       Kind
	Properties []string
	Line       int
}

// Property returns the attribute's first property, or "" if it has none.
func (a Attribute) Property() string {
	if len(a.Properties) == 0 {
		return ""
	}
	return a.Properties[0]
}
