package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanabuilder/arcana/internal/grammar"
	"github.com/arcanabuilder/arcana/internal/lexer"
)

func collectAll(t *testing.T, src string) *Environment {
	t.Helper()
	l := lexer.New("t.arc", []byte(src))
	env := New()
	col := NewCollector(env, l)
	eng := grammar.New(grammar.DefaultRules())

	for {
		res := eng.MatchNext(l.Next)
		if res.Failed {
			t.Fatalf("unexpected grammar failure on token %v, expected %v", res.Offender, res.Expected)
		}
		require.NoError(t, col.Collect(*res.Match))
		last := res.Match.Indexes[len(res.Match.Indexes)-1]
		if last.Token.Kind.String() == "EOF" {
			break
		}
	}
	return env
}

func TestCollectAssign(t *testing.T) {
	env := collectAll(t, "X = hello world\n")
	require.Contains(t, env.Vtable, "X")
	assert.Equal(t, "hello world", env.Vtable["X"].Value)
}

func TestCollectJoin(t *testing.T) {
	env := collectAll(t, "X = a\nX += b\n")
	require.Contains(t, env.Vtable, "X")
	assert.Equal(t, "a b", env.Vtable["X"].Value)
}

func TestCollectProfileMangling(t *testing.T) {
	env := collectAll(t, "@profile Debug\nFLAGS = -g\n")
	assert.Contains(t, env.Vtable, "FLAGS@@Debug")
	assert.NotContains(t, env.Vtable, "FLAGS")
}

func TestCollectUnknownAttribute(t *testing.T) {
	l := lexer.New("t.arc", []byte("@bogus foo\nX = 1\n"))
	env := New()
	col := NewCollector(env, l)
	eng := grammar.New(grammar.DefaultRules())
	res := eng.MatchNext(l.Next)
	require.False(t, res.Failed)
	err := col.Collect(*res.Match)
	require.Error(t, err)
}

func TestCollectTaskSingleLineBody(t *testing.T) {
	env := collectAll(t, "task Build() { echo hi }\n")
	require.Contains(t, env.Ftable, "Build")
	assert.Equal(t, []string{"echo hi"}, env.Ftable["Build"].Instructions)
}

func TestCollectTaskMultiLineBody(t *testing.T) {
	env := collectAll(t, "task Build()\n{\n echo one\n\n echo two\n}\n")
	require.Contains(t, env.Ftable, "Build")
	assert.Equal(t, []string{"echo one", "echo two"}, env.Ftable["Build"].Instructions)
}

func TestCollectUsingThreads(t *testing.T) {
	env := collectAll(t, "using threads 4\n")
	require.Len(t, env.Usings, 1)
	assert.Equal(t, UsingThreads, env.Usings[0].Directive)
	assert.Equal(t, []string{"4"}, env.Usings[0].Args)
}

func TestCollectMapping(t *testing.T) {
	env := collectAll(t, "OBJ = obj\nmap OBJ -> OBJ\n")
	require.Len(t, env.Mappings, 1)
	assert.Equal(t, "OBJ", env.Mappings[0].Src)
}

func TestCollectCacheTrackAttribute(t *testing.T) {
	env := collectAll(t, "@cache track Sources\ntask Build() { echo hi }\n")
	require.Contains(t, env.Ftable, "Build")
	require.Len(t, env.Ftable["Build"].Attributes, 1)
	attr := env.Ftable["Build"].Attributes[0]
	assert.Equal(t, KindCacheTrack, attr.Kind)
	assert.Equal(t, []string{"Sources"}, attr.Properties)
}

func TestCollectCacheStoreAndUntrackAttributes(t *testing.T) {
	env := collectAll(t, "@cache store Objects\ntask Link() { echo hi }\n")
	assert.Equal(t, KindCacheStore, env.Ftable["Link"].Attributes[0].Kind)

	env = collectAll(t, "@cache untrack Sources\ntask Clean() { echo hi }\n")
	assert.Equal(t, KindCacheUntrack, env.Ftable["Clean"].Attributes[0].Kind)
}

func TestCollectCacheUnknownVerbFails(t *testing.T) {
	l := lexer.New("t.arc", []byte("@cache bogus Sources\ntask Build() { echo hi }\n"))
	env := New()
	col := NewCollector(env, l)
	eng := grammar.New(grammar.DefaultRules())
	res := eng.MatchNext(l.Next)
	require.False(t, res.Failed)
	err := col.Collect(*res.Match)
	require.Error(t, err)
}

func TestCollectAssert(t *testing.T) {
	env := collectAll(t, `assert "1" eq "1" -> "must match"` + "\n")
	require.Len(t, env.Asserts, 1)
	assert.Equal(t, AssertEq, env.Asserts[0].Op)
	assert.Equal(t, "must match", env.Asserts[0].Reason)
}
