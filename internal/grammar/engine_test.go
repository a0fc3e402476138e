package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanabuilder/arcana/internal/lexer"
	"github.com/arcanabuilder/arcana/internal/token"
)

func matchOne(t *testing.T, src string) Result {
	t.Helper()
	l := lexer.New("t.arc", []byte(src))
	e := New(DefaultRules())
	return e.MatchNext(l.Next)
}

func TestEngineVariableAssign(t *testing.T) {
	res := matchOne(t, "X = hello world\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, VariableAssign, res.Match.Rule)
}

func TestEngineVariableJoin(t *testing.T) {
	res := matchOne(t, "X += more\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, VariableJoin, res.Match.Rule)
}

func TestEngineEmptyLine(t *testing.T) {
	res := matchOne(t, "\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, EmptyLine, res.Match.Rule)
}

func TestEngineAttribute(t *testing.T) {
	res := matchOne(t, "@depends foo bar\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, Attribute, res.Match.Rule)
}

func TestEngineImport(t *testing.T) {
	res := matchOne(t, "import other.arc\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, Import, res.Match.Rule)
}

func TestEngineUsing(t *testing.T) {
	res := matchOne(t, "using threads 4\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, Using, res.Match.Rule)
}

func TestEngineMapping(t *testing.T) {
	res := matchOne(t, "map src -> dst\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, Mapping, res.Match.Rule)
}

func TestEngineTaskDeclWithBraces(t *testing.T) {
	res := matchOne(t, "task build()\n{\n echo hi { nested } end\n}\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, TaskDecl, res.Match.Rule)
}

func TestEngineTaskDeclSameLineBrace(t *testing.T) {
	res := matchOne(t, "task build() {\n echo hi\n}\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, TaskDecl, res.Match.Rule)
}

func TestEngineUnexpectedTokenFails(t *testing.T) {
	res := matchOne(t, "= = =\n")
	assert.True(t, res.Failed)
	assert.Equal(t, token.ASSIGN, res.Offender.Kind)
	assert.NotEmpty(t, res.Alive)
}

func TestEngineAssert(t *testing.T) {
	res := matchOne(t, `assert "1" eq "1" -> "should match"` + "\n")
	require.False(t, res.Failed)
	require.NotNil(t, res.Match)
	assert.Equal(t, Assert, res.Match.Rule)
}
