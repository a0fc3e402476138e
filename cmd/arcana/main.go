// Command arcana reads an arcfile, plans the requested task, and runs it
// through the cache-aware executor.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/arcanabuilder/arcana/internal/arcerr"
	"github.com/arcanabuilder/arcana/internal/cache"
	"github.com/arcanabuilder/arcana/internal/config"
	"github.com/arcanabuilder/arcana/internal/executor"
	"github.com/arcanabuilder/arcana/internal/glob"
	"github.com/arcanabuilder/arcana/internal/logger"
	"github.com/arcanabuilder/arcana/internal/parse"
	"github.com/arcanabuilder/arcana/internal/plan"
	"github.com/arcanabuilder/arcana/internal/postproc"
	"github.com/arcanabuilder/arcana/internal/semantic"
	"github.com/arcanabuilder/arcana/internal/statusserver"
	"github.com/arcanabuilder/arcana/internal/watch"
)

const version = "0.4.2"

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if opts.Help {
		printUsage()
		os.Exit(1)
	}
	if opts.Version {
		fmt.Println("arcana version " + version)
		os.Exit(1)
	}
	if opts.Generate != "" {
		if err := runGenerate(opts.Generate); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(arcerr.ExitCode(err))
	}
}

func printUsage() {
	fmt.Println(`arcana - declarative build automation

Usage:
  arcana [flags] [task]

Flags:
  -s <file>            arcfile to read (default "arcfile")
  -p <profile>         profile to align the environment on
  -t <N>               positive worker count for parallelizable jobs
  --generate [path]    print a one-arcfile example to stdout or path, then exit
  --debug              verbose logging
  --flush-cache        remove .arcana/ before the run
  --cache-dir <dir>    cache subdirectory name (default ".arcana")
  --watch              after running, re-plan and re-run on tracked-input changes
  --status-addr HOST:PORT   serve the last plan/run as JSON
  --silent             suppress console logging and "Running task" lines
  --version            print the version and exit
  --help               print this message and exit

Examples:
  arcana Build
  arcana -s project.arc -p Release -t 4 Build
  arcana --watch --status-addr 127.0.0.1:8420 Build`)
}

// parseArgs is a manual scanner over os.Args: no flag package, both
// "--flag value" and "--flag=value" forms, first non-flag token is the
// positional task name.
func parseArgs(args []string) (config.Options, error) {
	var o config.Options
	o.StopOnError = true

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-s":
			v, rest, err := takeValue(args, i, "-s")
			if err != nil {
				return o, err
			}
			o.Arcfile = v
			i = rest
		case strings.HasPrefix(arg, "-s="):
			o.Arcfile = strings.TrimPrefix(arg, "-s=")
		case arg == "-p":
			v, rest, err := takeValue(args, i, "-p")
			if err != nil {
				return o, err
			}
			o.Profile = v
			i = rest
		case strings.HasPrefix(arg, "-p="):
			o.Profile = strings.TrimPrefix(arg, "-p=")
		case arg == "-t":
			v, rest, err := takeValue(args, i, "-t")
			if err != nil {
				return o, err
			}
			n, perr := strconv.Atoi(v)
			if perr != nil || n <= 0 {
				return o, &arcerr.ArgError{Message: "-t requires a positive integer"}
			}
			o.Threads = n
			i = rest
		case strings.HasPrefix(arg, "-t="):
			n, perr := strconv.Atoi(strings.TrimPrefix(arg, "-t="))
			if perr != nil || n <= 0 {
				return o, &arcerr.ArgError{Message: "-t requires a positive integer"}
			}
			o.Threads = n
		case arg == "--generate":
			o.Generate = "stdout"
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				o.Generate = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--generate="):
			o.Generate = strings.TrimPrefix(arg, "--generate=")
		case arg == "--debug":
			o.Debug = true
		case arg == "--flush-cache":
			o.FlushCache = true
		case arg == "--cache-dir":
			v, rest, err := takeValue(args, i, "--cache-dir")
			if err != nil {
				return o, err
			}
			o.CacheDir = v
			i = rest
		case strings.HasPrefix(arg, "--cache-dir="):
			o.CacheDir = strings.TrimPrefix(arg, "--cache-dir=")
		case arg == "--version":
			o.Version = true
		case arg == "--help", arg == "-h":
			o.Help = true
		case arg == "--silent":
			o.Silent = true
		case arg == "--watch":
			o.Watch = true
		case arg == "--status-addr":
			v, rest, err := takeValue(args, i, "--status-addr")
			if err != nil {
				return o, err
			}
			o.StatusAddr = v
			i = rest
		case strings.HasPrefix(arg, "--status-addr="):
			o.StatusAddr = strings.TrimPrefix(arg, "--status-addr=")
		case strings.HasPrefix(arg, "-"):
			return o, &arcerr.ArgError{Message: "unknown flag " + arg}
		default:
			if o.Task != "" {
				return o, &arcerr.ArgError{Message: "unexpected argument " + arg}
			}
			o.Task = arg
		}
	}
	return o, nil
}

func takeValue(args []string, i int, flag string) (string, int, error) {
	if i+1 >= len(args) {
		return "", i, &arcerr.ArgError{Message: flag + " requires a value"}
	}
	return args[i+1], i + 1, nil
}

const exampleArcfile = `# example arcfile (arcana --generate)
@glob
Sources = src/*.c

@echo
@cache track {arc:list:Sources}
task Build() {
    echo {arc:list:Sources}
}

@cache untrack {arc:list:Sources}
task Clean() {
    echo cleaning
}

@main Build
task Main() {
}
`

func runGenerate(target string) error {
	if target == "" || target == "stdout" {
		fmt.Print(exampleArcfile)
		return nil
	}
	return os.WriteFile(target, []byte(exampleArcfile), 0o644)
}

// run wires the pipeline together: config -> logger -> parse -> post-
// process -> plan -> cache -> executor, with the optional --watch and
// --status-addr extensions.
func run(opts config.Options) error {
	cwd, err := os.Getwd()
	if err != nil {
		return &arcerr.IOError{Message: "getting working directory", Cause: err}
	}

	pd, err := config.LoadProjectDefaults(cwd)
	if err != nil {
		return &arcerr.IOError{Path: cwd, Message: "loading .arcana.toml", Cause: err}
	}
	cliThreads := opts.Threads
	opts.ApplyDefaults(pd)
	// runOnce hands opts.Threads to ResolveThreads as the CLI value and
	// pd.Threads separately, so the arcfile's `using threads` can still
	// outrank .arcana.toml; keep only the CLI's own thread count here.
	opts.Threads = cliThreads

	logger.Setup(cwd, opts.Debug, opts.Silent)
	log := logger.GetLogger()
	defer logger.Stop()

	if opts.FlushCache {
		if err := cache.Flush(cwd, opts.CacheDir); err != nil {
			return err
		}
		log.Info().Msg("cache flushed")
	}

	store := statusserver.NewStore(opts.Profile, nil)

	runAndRecord := func() error {
		results, err := runOnce(cwd, opts, pd, store)
		if err != nil {
			return err
		}
		return firstJobError(results)
	}

	exitErr := runAndRecord()

	if opts.StatusAddr == "" && !opts.Watch {
		return exitErr
	}

	if opts.StatusAddr != "" {
		srv := statusserver.NewServer(store)
		go func() {
			if err := http.ListenAndServe(opts.StatusAddr, srv.Handler()); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
		log.Info().Str("addr", opts.StatusAddr).Msg("status server listening")
	}

	if !opts.Watch {
		return exitErr
	}

	trigger := func() {
		log.Info().Msg("tracked inputs changed, re-running")
		if err := runAndRecord(); err != nil {
			exitErr = err
			log.Error().Err(err).Msg("re-run failed")
		} else {
			exitErr = nil
		}
	}

	w, err := watch.New([]string{cwd}, 200*time.Millisecond, trigger)
	if err != nil {
		return &arcerr.IOError{Message: "starting watcher", Cause: err}
	}
	w.Start()
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	return exitErr
}

// runOnce parses, post-processes, plans, and executes the requested
// task once, recording the plan and job outcomes into store as it goes.
func runOnce(cwd string, opts config.Options, pd config.ProjectDefaults, store *statusserver.Store) ([]executor.JobResult, error) {
	arcfile := opts.Arcfile
	if !filepath.IsAbs(arcfile) {
		arcfile = filepath.Join(cwd, arcfile)
	}

	env, err := parse.File(arcfile)
	if err != nil {
		return nil, err
	}

	threads := config.ResolveThreads(opts.Threads, threadsFromUsings(env), pd.Threads)
	interpreter := config.ResolveInterpreter(env.Interpreter, pd.Interpreter)

	rootTask, err := plan.ResolveRoot(env, opts.Task)
	if err != nil {
		return nil, err
	}

	builtins := postproc.Builtins{
		Main:       rootTask,
		Root:       cwd,
		Version:    version,
		Profile:    opts.Profile,
		Threads:    threads,
		MaxThreads: threads,
	}
	globOpts := glob.DefaultOptions()
	if err := postproc.Run(env, cwd, builtins, globOpts, glob.ExpandOptions{}); err != nil {
		return nil, err
	}

	jobs, err := plan.Build(env, rootTask, interpreter)
	if err != nil {
		return nil, err
	}

	bf, err := cache.Open(cwd, opts.Profile, opts.CacheDir)
	if err != nil {
		return nil, err
	}
	defer bf.Close()

	jobNames := make([]string, len(jobs))
	for i, j := range jobs {
		jobNames[i] = j.Name
	}
	store.Reset(opts.Profile, jobNames)

	execOpts := executor.Options{
		Root:            cwd,
		Silent:          opts.Silent,
		StopOnError:     opts.StopOnError,
		MaxParallelism:  threads,
		GlobOptions:     globOpts,
		ScriptExtension: scriptExtension(),
		CacheDir:        opts.CacheDir,
		RunID:           store.RunID(),
	}

	log := logger.GetLogger()
	results, err := executor.Run(context.Background(), jobs, bf, execOpts, func(format string, a ...any) {
		log.Info().Msg(fmt.Sprintf(format, a...))
	})
	for _, r := range results {
		state := "ok"
		if r.Skipped {
			state = "skipped"
		} else if r.Failed() {
			state = "failed"
		}
		store.SetJobState(r.Job.Name, state, r.ExitCode)
	}
	store.Finish()
	if err != nil {
		return results, err
	}
	return results, nil
}

func threadsFromUsings(env *semantic.Environment) int {
	for _, u := range env.Usings {
		if u.Directive == semantic.UsingThreads && len(u.Args) == 1 {
			if n, err := strconv.Atoi(u.Args[0]); err == nil {
				return n
			}
		}
	}
	return 0
}

func firstJobError(results []executor.JobResult) error {
	for _, r := range results {
		if r.Failed() {
			instr := 0
			for _, ir := range r.Instructions {
				if ir.ExitCode != 0 {
					instr = ir.Index
					break
				}
			}
			return &arcerr.JobError{JobName: r.Job.Name, Instruction: instr, ExitCode: r.ExitCode}
		}
	}
	return nil
}

func scriptExtension() string {
	if os.PathSeparator == '\\' {
		return ".bat"
	}
	return ".sh"
}
