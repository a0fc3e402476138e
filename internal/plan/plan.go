// Package plan turns a collected, post-processed Environment into the
// ordered, deduplicated job list the executor runs.
package plan

import (
	"github.com/google/uuid"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/semantic"
)

// Job is one runnable unit after planning.
type Job struct {
	ID             string
	Name           string
	Instructions   []string
	Interpreter    string
	Parallelizable bool
	Echo           bool
	TrackInputs    []string
	StoreInputs    []string
	UntrackInputs  []string
}

// Build starts from the task named by root (the CLI positional, or the
// task carrying the `main` attribute when root is ""), and recursively
// in topological order emits a job for it and for every task named in
// its `requires` attribute and its `main` attribute's sub-task list
//. Job names are unique in the output; duplicates are
// skipped via a name-index set.
func Build(env *semantic.Environment, root string, defaultInterpreter string) ([]Job, error) {
	root, err := ResolveRoot(env, root)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	seen := map[string]bool{}

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		task, ok := env.Ftable[name]
		if !ok {
			return &arcerr.SemanticError{Message: "unknown task " + name}
		}
		seen[name] = true

		for _, sub := range subTasks(task) {
			if err := visit(sub); err != nil {
				return err
			}
		}

		jobs = append(jobs, buildJob(task, defaultInterpreter))
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ResolveRoot returns root unchanged if non-empty, else the name of the
// task carrying the `main` attribute. Exported so callers that need the resolved task name
// before planning (e.g. to fill in the `__main__` builtin ahead of
// post-processing) don't have to duplicate this lookup.
func ResolveRoot(env *semantic.Environment, root string) (string, error) {
	if root != "" {
		return root, nil
	}
	for name, task := range env.Ftable {
		for _, a := range task.Attributes {
			if a.Kind == semantic.KindMain {
				return name, nil
			}
		}
	}
	return "", &arcerr.SemanticError{Message: "no task is requested and none carries @main"}
}

func subTasks(task *semantic.Task) []string {
	var out []string
	for _, a := range task.Attributes {
		switch a.Kind {
		case semantic.KindRequires:
			out = append(out, a.Properties...)
		case semantic.KindMain:
			out = append(out, a.Properties...)
		}
	}
	return out
}

func buildJob(task *semantic.Task, defaultInterpreter string) Job {
	j := Job{
		ID:             uuid.NewString(),
		Name:           task.Name,
		Instructions:   task.Instructions,
		Interpreter:    defaultInterpreter,
		Parallelizable: attrPresent(task.Attributes, semantic.KindMultithread),
		Echo:           attrPresent(task.Attributes, semantic.KindEcho),
	}
	for _, a := range task.Attributes {
		switch a.Kind {
		case semantic.KindInterpreter:
			if len(a.Properties) > 0 {
				j.Interpreter = a.Properties[0]
			}
		case semantic.KindCacheTrack:
			j.TrackInputs = append(j.TrackInputs, a.Properties...)
		case semantic.KindCacheStore:
			j.StoreInputs = append(j.StoreInputs, a.Properties...)
		case semantic.KindCacheUntrack:
			j.UntrackInputs = append(j.UntrackInputs, a.Properties...)
		}
	}
	return j
}

func attrPresent(attrs []semantic.Attribute, kind semantic.Kind) bool {
	for _, a := range attrs {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
