// Package arcana is an embeddable SDK for the declarative build-automation
// engine: parse an arcfile, plan a task, and run it through the
// cache-aware executor, without going through the cmd/arcana binary.
//
// # Quick Start
//
//	eng, err := arcana.New(".", arcana.WithTask("Build"), arcana.WithProfile("Release"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := eng.Run(context.Background())
package arcana

import (
	"context"
	"path/filepath"

	"github.com/arcanabuilder/arcana/internal/cache"
	"github.com/arcanabuilder/arcana/internal/config"
	"github.com/arcanabuilder/arcana/internal/executor"
	"github.com/arcanabuilder/arcana/internal/glob"
	"github.com/arcanabuilder/arcana/internal/parse"
	"github.com/arcanabuilder/arcana/internal/plan"
	"github.com/arcanabuilder/arcana/internal/postproc"
)

// Version is the engine version string substituted for {arc:__version__}.
const Version = "0.4.2"

// Options is an alias for the shared CLI/library option set.
type Options = config.Options

// Job is an alias for a planned runnable unit.
type Job = plan.Job

// JobResult is an alias for one job's outcome.
type JobResult = executor.JobResult

// Option configures an Engine.
type Option func(*Options)

// WithArcfile sets the arcfile to read, relative to the Engine's root
// unless absolute. Defaults to config.DefaultArcfile ("arcfile").
func WithArcfile(path string) Option {
	return func(o *Options) { o.Arcfile = path }
}

// WithTask requests a specific task by name instead of the `main`-attributed
// default.
func WithTask(name string) Option {
	return func(o *Options) { o.Task = name }
}

// WithProfile aligns the environment on the named profile before planning.
func WithProfile(profile string) Option {
	return func(o *Options) { o.Profile = profile }
}

// WithThreads caps the worker count used for parallelizable jobs.
func WithThreads(n int) Option {
	return func(o *Options) { o.Threads = n }
}

// WithSilent suppresses per-job "Running task" log lines.
func WithSilent(silent bool) Option {
	return func(o *Options) { o.Silent = silent }
}

// WithStopOnError controls whether the first failing job aborts the run.
func WithStopOnError(stop bool) Option {
	return func(o *Options) { o.StopOnError = stop }
}

// WithCacheDir overrides the cache subdirectory name (default ".arcana").
func WithCacheDir(dir string) Option {
	return func(o *Options) { o.CacheDir = dir }
}

// Engine drives one arcfile through the parse -> post-process -> plan ->
// cache -> executor pipeline. Unlike the cmd/arcana binary it never reads
// os.Args, touches stdout/stderr, or calls os.Exit, so it embeds cleanly
// in a host program.
type Engine struct {
	root string
	opts Options
}

// New builds an Engine rooted at dir, the working directory that holds
// .arcana.toml, the arcfile, and the .arcana/ cache directory. Project
// defaults from .arcana.toml are loaded and merged under whatever opts
// sets explicitly.
func New(dir string, opts ...Option) (*Engine, error) {
	o := Options{Arcfile: config.DefaultArcfile, StopOnError: true}
	for _, opt := range opts {
		opt(&o)
	}

	pd, err := config.LoadProjectDefaults(dir)
	if err != nil {
		return nil, err
	}
	o.ApplyDefaults(pd)

	return &Engine{root: dir, opts: o}, nil
}

// Run parses the arcfile, plans the requested (or @main) task, and
// executes it once, returning every planned job's outcome in order. A
// failing job is reported in its JobResult; Run itself only returns an
// error for a pipeline failure that precedes or aborts execution (a
// parse error, a failed assert, an unplannable task graph, a cache I/O
// failure).
func (e *Engine) Run(ctx context.Context) ([]JobResult, error) {
	arcfile := e.opts.Arcfile
	if !filepath.IsAbs(arcfile) {
		arcfile = filepath.Join(e.root, arcfile)
	}

	env, err := parse.File(arcfile)
	if err != nil {
		return nil, err
	}

	rootTask, err := plan.ResolveRoot(env, e.opts.Task)
	if err != nil {
		return nil, err
	}

	threads := config.ResolveThreads(e.opts.Threads, 0, 0)
	interpreter := config.ResolveInterpreter(env.Interpreter, "")

	builtins := postproc.Builtins{
		Main:       rootTask,
		Root:       e.root,
		Version:    Version,
		Profile:    e.opts.Profile,
		Threads:    threads,
		MaxThreads: threads,
	}
	globOpts := glob.DefaultOptions()
	if err := postproc.Run(env, e.root, builtins, globOpts, glob.ExpandOptions{}); err != nil {
		return nil, err
	}

	jobs, err := plan.Build(env, rootTask, interpreter)
	if err != nil {
		return nil, err
	}

	bf, err := cache.Open(e.root, e.opts.Profile, e.opts.CacheDir)
	if err != nil {
		return nil, err
	}
	defer bf.Close()

	execOpts := executor.Options{
		Root:           e.root,
		Silent:         e.opts.Silent,
		StopOnError:    e.opts.StopOnError,
		MaxParallelism: threads,
		GlobOptions:    globOpts,
		CacheDir:       e.opts.CacheDir,
	}
	return executor.Run(ctx, jobs, bf, execOpts, func(string, ...any) {})
}

// Plan is a convenience for callers that only want the ordered job list
// (for a dry-run report, say) without touching the cache or executor.
func (e *Engine) Plan() ([]Job, error) {
	arcfile := e.opts.Arcfile
	if !filepath.IsAbs(arcfile) {
		arcfile = filepath.Join(e.root, arcfile)
	}

	env, err := parse.File(arcfile)
	if err != nil {
		return nil, err
	}

	rootTask, err := plan.ResolveRoot(env, e.opts.Task)
	if err != nil {
		return nil, err
	}

	threads := config.ResolveThreads(e.opts.Threads, 0, 0)
	interpreter := config.ResolveInterpreter(env.Interpreter, "")

	builtins := postproc.Builtins{
		Main:       rootTask,
		Root:       e.root,
		Version:    Version,
		Profile:    e.opts.Profile,
		Threads:    threads,
		MaxThreads: threads,
	}
	globOpts := glob.DefaultOptions()
	if err := postproc.Run(env, e.root, builtins, globOpts, glob.ExpandOptions{}); err != nil {
		return nil, err
	}

	return plan.Build(env, rootTask, interpreter)
}
