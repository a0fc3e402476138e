package postproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcanabuilder/arcana/internal/semantic"
)

func TestAlignOnProfileDropsAndRenames(t *testing.T) {
	env := semantic.New()
	env.Vtable["FLAGS@@Debug"] = &semantic.Assign{Name: "FLAGS", Value: "-g"}
	env.Vtable["FLAGS@@Release"] = &semantic.Assign{Name: "FLAGS", Value: "-O2"}

	AlignOnProfile(env, "Release")

	require.Contains(t, env.Vtable, "FLAGS")
	assert.Equal(t, "-O2", env.Vtable["FLAGS"].Value)
	assert.NotContains(t, env.Vtable, "FLAGS@@Debug")
	assert.NotContains(t, env.Vtable, "FLAGS@@Release")
}

func TestAlignOnProfileOverwritesUnmangled(t *testing.T) {
	env := semantic.New()
	env.Vtable["FLAGS"] = &semantic.Assign{Name: "FLAGS", Value: "default"}
	env.Vtable["FLAGS@@Release"] = &semantic.Assign{Name: "FLAGS", Value: "-O2"}

	AlignOnProfile(env, "Release")

	assert.Equal(t, "-O2", env.Vtable["FLAGS"].Value)
}

func TestEvaluateAssertsFailureProducesReason(t *testing.T) {
	env := semantic.New()
	env.Asserts = []semantic.Assert{
		{LHS: "a", Op: semantic.AssertEq, RHS: "b", Reason: "a must equal b"},
	}
	err := evaluateAsserts(env, func(s string) string { return s })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a must equal b")
}

func TestEvaluateAssertsIn(t *testing.T) {
	env := semantic.New()
	env.Asserts = []semantic.Assert{
		{LHS: "b", Op: semantic.AssertIn, RHS: "a b c", Reason: "unreachable"},
	}
	err := evaluateAsserts(env, func(s string) string { return s })
	assert.NoError(t, err)
}

func TestSubstituteBuiltinsAndVariables(t *testing.T) {
	env := semantic.New()
	env.Vtable["X"] = &semantic.Assign{Name: "X", Value: "hello", GlobExpansion: []string{"a.c", "b.c"}}
	b := Builtins{Profile: "Release", Threads: 4}

	assert.Equal(t, "hello", substitute(env, b, "{arc:X}"))
	assert.Equal(t, "a.c b.c", substitute(env, b, "{arc:list:X}"))
	assert.Equal(t, "Release", substitute(env, b, "{arc:__profile__}"))
	assert.Equal(t, "4", substitute(env, b, "{arc:__threads__}"))
}

func TestSubstituteInstructionsRewritesTaskBodies(t *testing.T) {
	env := semantic.New()
	env.Vtable["X"] = &semantic.Assign{Name: "X", Value: "hello"}
	env.Ftable["Build"] = &semantic.Task{Name: "Build", Instructions: []string{"echo {arc:X}", "echo {arc:__profile__}"}}
	b := Builtins{Profile: "Release"}

	substituteInstructions(env, b)

	assert.Equal(t, []string{"echo hello", "echo Release"}, env.Ftable["Build"].Instructions)
}
