package glob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiteral(t *testing.T) {
	p, err := Parse("src/a.c", DefaultOptions())
	require.NoError(t, err)
	assert.False(t, p.Absolute)
	assert.Equal(t, "src/a.c", p.Normalized)
}

func TestParseNormalizesBackslashSeparators(t *testing.T) {
	p, err := Parse(`src\*.c`, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, "src/*.c", p.Normalized)

	forward, err := Parse("src/*.c", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, forward.Segments, p.Segments)
}

func TestParseLeavesBackslashesWhenSeparatorIsNotSlash(t *testing.T) {
	opts := DefaultOptions()
	opts.Separator = ':'
	p, err := Parse(`src\*.c`, opts)
	require.NoError(t, err)
	require.Len(t, p.Segments, 1)
}

func TestParseAbsolute(t *testing.T) {
	p, err := Parse("/src/*.c", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, p.Absolute)
}

func TestParseUnclosedClass(t *testing.T) {
	_, err := Parse("[abc", DefaultOptions())
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrUnclosedCharClass, pe.Code)
}

func TestParseEmptyClass(t *testing.T) {
	_, err := Parse("[]", DefaultOptions())
	require.Error(t, err)
}

func TestParseLiteralDoubleStarInsideSegment(t *testing.T) {
	_, err := Parse("a**b", DefaultOptions())
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrInvalidDoubleStar, pe.Code)
}

func TestCharClassBoundaries(t *testing.T) {
	cls := Class{Ranges: []CharRange{{Lo: 'a', Hi: 'z'}}}
	assert.True(t, cls.Matches('a'))
	assert.True(t, cls.Matches('z'))
	assert.False(t, cls.Matches('A'))

	neg := Class{Negated: true, Ranges: []CharRange{{Lo: 'a', Hi: 'z'}}}
	assert.False(t, neg.Matches('m'))
	assert.True(t, neg.Matches('5'))
}

func TestMatchStarAndQMark(t *testing.T) {
	p, err := Parse("*.c", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, Match(p, "a.c"))
	assert.False(t, Match(p, "a.h"))

	q, err := Parse("a?c", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, Match(q, "abc"))
	assert.False(t, Match(q, "ac"))
}

func TestMatchCaptureStar(t *testing.T) {
	p, err := Parse("src/*.c", DefaultOptions())
	require.NoError(t, err)
	caps, ok := MatchCapture(p, "src/a.c")
	require.True(t, ok)
	require.Len(t, caps, 1)
	assert.Equal(t, CaptureSegment, caps[0].Kind)
	assert.Equal(t, "a", caps[0].Value)
}

func TestMatchCaptureDoubleStar(t *testing.T) {
	p, err := Parse("src/**/*.c", DefaultOptions())
	require.NoError(t, err)
	caps, ok := MatchCapture(p, "src/sub/a.c")
	require.True(t, ok)
	require.Len(t, caps, 2)
	assert.Equal(t, CapturePath, caps[0].Kind)
	assert.Equal(t, "sub", caps[0].Value)
	assert.Equal(t, "a", caps[1].Value)
}

func TestMatchCaptureDoubleStarZeroSegments(t *testing.T) {
	p, err := Parse("src/**/*.c", DefaultOptions())
	require.NoError(t, err)
	caps, ok := MatchCapture(p, "src/a.c")
	require.True(t, ok)
	require.Len(t, caps, 2)
	assert.Equal(t, "", caps[0].Value)
}

func TestInstantiateMapping(t *testing.T) {
	from, err := Parse("src/*.c", DefaultOptions())
	require.NoError(t, err)
	to, err := Parse("obj/*.o", DefaultOptions())
	require.NoError(t, err)

	caps, ok := MatchCapture(from, "src/a.c")
	require.True(t, ok)
	out, err := Instantiate(to, caps)
	require.NoError(t, err)
	assert.Equal(t, "obj/a.o", out)
}

func TestMapGlobToGlob(t *testing.T) {
	results, remaining, err := MapGlobToGlob(
		[]string{"src/*.c"}, "obj/*.o",
		[]string{"src/a.c", "src/b.c"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"obj/a.o", "obj/b.o"}, results)
	assert.Empty(t, remaining)
}

func TestExpandDeterministicAndDepthScoped(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "sub"), 0o755))
	for _, f := range []string{"src/a.c", "src/b.c", "src/sub/c.c"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}

	p, err := Parse("src/*.c", DefaultOptions())
	require.NoError(t, err)
	out, err := Expand(p, dir, ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.c", "src/b.c"}, out)

	rec, err := Parse("src/**/*.c", DefaultOptions())
	require.NoError(t, err)
	out2, err := Expand(rec, dir, ExpandOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src/a.c", "src/b.c", "src/sub/c.c"}, out2)
}

func TestExpandRoundTripWithMatchCapture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.c"), []byte("x"), 0o644))

	p, err := Parse("src/*.c", DefaultOptions())
	require.NoError(t, err)
	out, err := Expand(p, dir, ExpandOptions{})
	require.NoError(t, err)
	for _, path := range out {
		_, ok := MatchCapture(p, path)
		assert.True(t, ok, "expanded path %q must match its own pattern", path)
	}
}

func TestExpandExcludesDotfilesByDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible"), []byte("x"), 0o644))

	p, err := Parse("*", DefaultOptions())
	require.NoError(t, err)
	out, err := Expand(p, dir, ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, out)
}
