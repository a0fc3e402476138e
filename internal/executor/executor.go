// Package executor runs a planned job list in order, spawning each
// instruction's generated script through the configured interpreter and
// consulting the cache to skip jobs whose tracked inputs are unchanged.
package executor

import (
	"context"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/cache"
	"github.com/arcanabuilder/arcana/internal/glob"
	"github.com/arcanabuilder/arcana/internal/plan"
)

// Options controls a run.
type Options struct {
	Root            string
	Silent          bool
	StopOnError     bool
	MaxParallelism  int
	GlobOptions     glob.Options
	ScriptExtension string

	// CacheDir overrides the cache subdirectory name (default ".arcana")
	// generated scripts are written under.
	CacheDir string

	// RunID, when set, is echoed in every "Running task" log line so a
	// caller tailing several concurrent --watch re-runs can tell them
	// apart.
	RunID string
}

// InstructionResult is one instruction's outcome within a job.
type InstructionResult struct {
	Index    int
	ExitCode int
	Err      error
}

// JobResult is one job's outcome.
type JobResult struct {
	Job          plan.Job
	Skipped      bool
	Instructions []InstructionResult
	ExitCode     int
}

// Failed reports whether the job's first non-zero instruction exit code
// should be treated as a failure.
func (r JobResult) Failed() bool {
	return r.ExitCode != 0
}

// Logf is called once per job for the "Running task: NAME" line; the
// executor never logs directly so callers can route through
// whichever logger they've set up.
type Logf func(format string, args ...any)

// Run executes jobs in order against opts, using bf to decide whether a
// job's tracked inputs changed. Returns the per-job results; the error
// return is only non-nil for an I/O failure unrelated to a spawned
// command's exit code.
func Run(ctx context.Context, jobs []plan.Job, bf *cache.BinFile, opts Options, log Logf) ([]JobResult, error) {
	if log == nil {
		log = func(string, ...any) {}
	}
	if opts.GlobOptions.Separator == 0 {
		opts.GlobOptions = glob.DefaultOptions()
	}

	var results []JobResult
	for _, job := range jobs {
		if !opts.Silent {
			if opts.RunID != "" {
				log("Running task: %s (run %s)", job.Name, opts.RunID)
			} else {
				log("Running task: %s", job.Name)
			}
		}

		skip, err := skipIfUnchanged(bf, job, opts)
		if err != nil {
			return results, err
		}
		if skip {
			results = append(results, JobResult{Job: job, Skipped: true})
			continue
		}

		var jr JobResult
		var err2 error
		if job.Parallelizable {
			jr, err2 = runParallel(ctx, job, opts)
		} else {
			jr, err2 = runSequential(ctx, job, opts)
		}
		if err2 != nil {
			return results, err2
		}

		if err := storeTracked(bf, job, opts); err != nil {
			return results, err
		}

		results = append(results, jr)

		if jr.Failed() && opts.StopOnError {
			if !opts.Silent {
				log("Task failed: %s", job.Name)
			}
			break
		}
	}
	return results, nil
}

func skipIfUnchanged(bf *cache.BinFile, job plan.Job, opts Options) (bool, error) {
	if bf == nil || len(job.TrackInputs) == 0 {
		return false, nil
	}
	anyChanged := false
	for _, pattern := range job.TrackInputs {
		paths, err := expandTrackPattern(pattern, opts)
		if err != nil {
			return false, err
		}
		for _, p := range paths {
			changed, err := bf.HasFileChanged(p)
			if err != nil {
				return false, err
			}
			if changed {
				anyChanged = true
			}
		}
	}
	return !anyChanged, nil
}

func storeTracked(bf *cache.BinFile, job plan.Job, opts Options) error {
	if bf == nil {
		return nil
	}
	if len(job.UntrackInputs) > 0 {
		var keys []string
		for _, pattern := range job.UntrackInputs {
			paths, err := expandTrackPattern(pattern, opts)
			if err != nil {
				return err
			}
			keys = append(keys, paths...)
		}
		if err := bf.ClearCache(keys); err != nil {
			return err
		}
	}
	for _, pattern := range job.StoreInputs {
		paths, err := expandTrackPattern(pattern, opts)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := bf.HasFileChanged(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// expandTrackPattern resolves a cache-track/store/untrack glob relative
// to the run's root directory and returns the matched paths as full OS
// paths suitable for passing to BinFile.HasFileChanged.
func expandTrackPattern(pattern string, opts Options) ([]string, error) {
	pat, err := glob.Parse(pattern, opts.GlobOptions)
	if err != nil {
		return nil, &arcerr.PostProcessError{Stage: "track-expand", Message: "invalid glob " + pattern, Cause: err}
	}
	rel, err := glob.Expand(pat, opts.Root, glob.ExpandOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(opts.Root, r)
	}
	return out, nil
}

// runSequential executes a non-parallelizable job's instructions in
// order, writing each to a script and spawning it through the job's
// interpreter, stopping early on the first failure when StopOnError is
// set.
func runSequential(ctx context.Context, job plan.Job, opts Options) (JobResult, error) {
	jr := JobResult{Job: job}
	for i, instr := range job.Instructions {
		path, err := cache.WriteScript(opts.Root, job.Name, i, opts.ScriptExtension, instr, opts.CacheDir)
		if err != nil {
			return jr, err
		}

		code := spawn(ctx, job.Interpreter, path)
		res := InstructionResult{Index: i, ExitCode: code}
		jr.Instructions = append(jr.Instructions, res)

		if code != 0 {
			if jr.ExitCode == 0 {
				jr.ExitCode = code
			}
			if opts.StopOnError {
				break
			}
		}
	}
	return jr, nil
}

// runParallel executes a parallelizable job's instructions across up to
// MaxParallelism worker goroutines. The mutex guards only the write into
// the pre-sized results slice, not the spawn itself, so workers actually
// run concurrently; it scans for the earliest non-zero exit code after
// all have joined.
func runParallel(ctx context.Context, job plan.Job, opts Options) (JobResult, error) {
	jr := JobResult{Job: job, Instructions: make([]InstructionResult, len(job.Instructions))}

	width := opts.MaxParallelism
	if width <= 0 {
		width = 1
	}
	if width > len(job.Instructions) {
		width = len(job.Instructions)
	}
	if width == 0 {
		return jr, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var writeErr error

	sem := make(chan struct{}, width)
	for i, instr := range job.Instructions {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, instr string) {
			defer wg.Done()
			defer func() { <-sem }()

			path, err := cache.WriteScript(opts.Root, job.Name, i, opts.ScriptExtension, instr, opts.CacheDir)
			if err != nil {
				mu.Lock()
				if writeErr == nil {
					writeErr = err
				}
				mu.Unlock()
				return
			}
			code := spawn(ctx, job.Interpreter, path)
			mu.Lock()
			jr.Instructions[i] = InstructionResult{Index: i, ExitCode: code}
			mu.Unlock()
		}(i, instr)
	}
	wg.Wait()

	if writeErr != nil {
		return jr, writeErr
	}

	for _, res := range jr.Instructions {
		if res.ExitCode != 0 {
			jr.ExitCode = res.ExitCode
			break
		}
	}
	return jr, nil
}

// commandNotFoundExitCode is the normalised stand-in for a spawn
// failure the platform gives no real exit code for (e.g. the
// interpreter binary is missing).
const commandNotFoundExitCode = 127

func spawn(ctx context.Context, interpreter, scriptPath string) int {
	cmd := exec.CommandContext(ctx, interpreter, scriptPath)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return commandNotFoundExitCode
	}
	return 0
}
