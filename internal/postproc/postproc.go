// Package postproc runs the environment post-processing pipeline, in
// its fixed order: profile alignment, glob/map expansion of variables,
// assert evaluation, and `{arc:...}` substitution.
package postproc

import (
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/glob"
	"github.com/arcanabuilder/arcana/internal/semantic"
)

// Builtins holds the read-only symbol table set once after argument
// parsing: __main__, __root__, __version__,
// __profile__, __threads__, __max_threads__, __os__, __arch__.
type Builtins struct {
	Main       string
	Root       string
	Version    string
	Profile    string
	Threads    int
	MaxThreads int
}

// OS returns the build-family name for the running platform.
func OS() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "macos"
	case "linux":
		return "linux"
	case "freebsd":
		return "freeBSD"
	default:
		if runtime.GOOS == "dragonfly" || runtime.GOOS == "openbsd" || runtime.GOOS == "netbsd" {
			return "unix"
		}
		return "unknown"
	}
}

// Arch returns the architecture family name for the running platform.
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	case "arm":
		return "arm"
	case "riscv64":
		return "riscv"
	case "ppc64":
		return "ppc64"
	case "ppc64le", "ppc":
		return "ppc"
	default:
		return "unknown"
	}
}

// Run executes the fixed pipeline against env, returning a
// *arcerr.PostProcessError (or *arcerr.SemanticError for a failed
// assert) on the first failure.
func Run(env *semantic.Environment, root string, b Builtins, globOpts glob.Options, expandOpts glob.ExpandOptions) error {
	AlignOnProfile(env, b.Profile)

	if err := expandGlobVariables(env, root, globOpts, expandOpts); err != nil {
		return err
	}
	if err := expandMappedVariables(env, globOpts); err != nil {
		return err
	}
	if err := evaluateAsserts(env, func(s string) string { return substitute(env, b, s) }); err != nil {
		return err
	}
	substituteInstructions(env, b)
	return nil
}

// substituteInstructions applies the final substitution pass to task
// bodies: every instruction line still carries raw `{arc:...}` references until
// the executor writes and spawns it, so they must be resolved here,
// after asserts have already run their own (pre-substitution) checks.
func substituteInstructions(env *semantic.Environment, b Builtins) {
	for _, task := range env.Ftable {
		for i, instr := range task.Instructions {
			task.Instructions[i] = substitute(env, b, instr)
		}
	}
}

// AlignOnProfile aligns the environment on profile P: drop entries
// whose mangled suffix isn't P, rename base@@P -> base (overwriting any
// unmangled base). Applies to vtable and ftable; ctable is left as is,
// since its `caller@@callee` keys are not profile-mangled.
func AlignOnProfile(env *semantic.Environment, profile string) {
	env.Vtable = alignAssignTable(env.Vtable, profile)
	env.Ftable = alignTaskTable(env.Ftable, profile)
}

func alignAssignTable(table map[string]*semantic.Assign, profile string) map[string]*semantic.Assign {
	out := map[string]*semantic.Assign{}
	for key, v := range table {
		base, suffix, mangled := splitMangled(key)
		if !mangled {
			if _, exists := out[key]; !exists {
				out[key] = v
			}
			continue
		}
		if suffix != profile {
			continue
		}
		out[base] = v
	}
	return out
}

func alignTaskTable(table map[string]*semantic.Task, profile string) map[string]*semantic.Task {
	out := map[string]*semantic.Task{}
	for key, v := range table {
		base, suffix, mangled := splitMangled(key)
		if !mangled {
			if _, exists := out[key]; !exists {
				out[key] = v
			}
			continue
		}
		if suffix != profile {
			continue
		}
		out[base] = v
	}
	return out
}

func splitMangled(key string) (base, suffix string, mangled bool) {
	idx := strings.Index(key, "@@")
	if idx < 0 {
		return key, "", false
	}
	return key[:idx], key[idx+2:], true
}

// expandGlobVariables implements step 2: every variable carrying a
// `glob` attribute but no `map` attribute is expanded against the
// filesystem.
func expandGlobVariables(env *semantic.Environment, root string, opts glob.Options, eopts glob.ExpandOptions) error {
	for name, a := range env.Vtable {
		if !hasAttr(a.Attributes, semantic.KindGlob) || hasAttr(a.Attributes, semantic.KindMap) {
			continue
		}
		pat, err := glob.Parse(a.Value, opts)
		if err != nil {
			return &arcerr.PostProcessError{Stage: "glob-expand", Message: "invalid glob for " + name, Cause: err}
		}
		out, err := glob.Expand(pat, root, eopts)
		if err != nil {
			return &arcerr.PostProcessError{Stage: "glob-expand", Message: "expanding glob for " + name, Cause: err}
		}
		a.GlobExpansion = out
	}
	return nil
}

// expandMappedVariables implements step 3: every variable with a `map`
// attribute naming a source variable has its destination glob
// instantiated from the source's own expansion.
func expandMappedVariables(env *semantic.Environment, opts glob.Options) error {
	for name, a := range env.Vtable {
		srcName, ok := mapSource(a.Attributes)
		if !ok {
			continue
		}
		src, ok := env.Vtable[srcName]
		if !ok {
			return &arcerr.PostProcessError{Stage: "map-expand", Message: "map source " + srcName + " for " + name + " is undefined"}
		}

		results, _, err := glob.MapGlobToGlob([]string{src.Value}, a.Value, src.GlobExpansion, opts)
		if err != nil {
			return &arcerr.PostProcessError{Stage: "map-expand", Message: "mapping " + srcName + " -> " + name, Cause: err}
		}
		a.GlobExpansion = results
	}
	return nil
}

func hasAttr(attrs []semantic.Attribute, kind semantic.Kind) bool {
	for _, a := range attrs {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func mapSource(attrs []semantic.Attribute) (string, bool) {
	for _, a := range attrs {
		if a.Kind == semantic.KindMap && len(a.Properties) == 1 {
			return a.Properties[0], true
		}
	}
	return "", false
}

// evaluateAsserts implements step 4: compute lhs/rhs by substitution; a
// false result aborts with the assert's reason as the error message.
func evaluateAsserts(env *semantic.Environment, subst func(string) string) error {
	for _, a := range env.Asserts {
		lhs := subst(a.LHS)
		rhs := subst(a.RHS)

		var ok bool
		switch a.Op {
		case semantic.AssertEq:
			ok = lhs == rhs
		case semantic.AssertNe:
			ok = lhs != rhs
		case semantic.AssertIn:
			ok = false
			for _, tok := range strings.Fields(rhs) {
				if tok == lhs {
					ok = true
					break
				}
			}
		}
		if !ok {
			return &arcerr.SemanticError{
				Pos:     arcerr.SourcePos{Line: a.Line, Text: a.StmtText},
				Message: subst(a.Reason),
			}
		}
	}
	return nil
}

var substRef = regexp.MustCompile(`\{arc:(list:|inline:)?([A-Za-z_][A-Za-z0-9_]*)\}`)

// substitute replaces every `{arc:...}` reference in s with its resolved
// value: built-ins first, then scalar/list variable references.
func substitute(env *semantic.Environment, b Builtins, s string) string {
	return substRef.ReplaceAllStringFunc(s, func(m string) string {
		groups := substRef.FindStringSubmatch(m)
		listForm := groups[1] != ""
		name := groups[2]

		if v, ok := builtinValue(b, name); ok {
			return v
		}
		a, ok := env.Vtable[name]
		if !ok {
			return m
		}
		if listForm {
			return strings.Join(a.GlobExpansion, " ")
		}
		return a.Value
	})
}

func builtinValue(b Builtins, name string) (string, bool) {
	switch name {
	case "__main__":
		return b.Main, true
	case "__root__":
		return b.Root, true
	case "__version__":
		return b.Version, true
	case "__profile__":
		return b.Profile, true
	case "__threads__":
		return strconv.Itoa(b.Threads), true
	case "__max_threads__":
		return strconv.Itoa(b.MaxThreads), true
	case "__os__":
		return OS(), true
	case "__arch__":
		return Arch(), true
	}
	return "", false
}
