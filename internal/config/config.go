// Package config resolves Arcana's run options from three layers:
// CLI flags, the arcfile's own `using` directives, and an optional
// `.arcana.toml` project-defaults file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Options is the fully-resolved set of knobs a run executes under,
// built from CLI flags and then filled in from project defaults by
// ApplyDefaults.
type Options struct {
	Task        string
	Arcfile     string
	Profile     string
	Threads     int
	Generate    string
	Debug       bool
	FlushCache  bool
	Version     bool
	Help        bool
	Silent      bool
	StopOnError bool
	Watch       bool
	StatusAddr  string
	CacheDir    string
}

// DefaultArcfile is used when -s is not given.
const DefaultArcfile = "arcfile"

// ProjectDefaults is the shape of an optional `.arcana.toml` file sitting
// next to the arcfile: project-wide defaults that CLI flags override and
// that themselves only apply when the arcfile's own `using` directives
// are silent. Recognized keys: `default_profile`, `default_interpreter`,
// `threads`, `cache_dir`, plus the ambient `arcfile`, `silent`,
// `stop_on_error`, and `status_addr` extras.
type ProjectDefaults struct {
	Arcfile     string `toml:"arcfile"`
	Profile     string `toml:"default_profile"`
	Threads     int    `toml:"threads"`
	Interpreter string `toml:"default_interpreter"`
	CacheDir    string `toml:"cache_dir"`
	Silent      bool   `toml:"silent"`
	StopOnError bool   `toml:"stop_on_error"`
	StatusAddr  string `toml:"status_addr"`
}

// LoadProjectDefaults reads .arcana.toml from dir, returning zero-value
// defaults (not an error) if the file does not exist.
func LoadProjectDefaults(dir string) (ProjectDefaults, error) {
	var pd ProjectDefaults
	path := filepath.Join(dir, ".arcana.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return pd, nil
	}
	if err != nil {
		return pd, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), &pd); err != nil {
		return pd, fmt.Errorf("parse %s: %w", path, err)
	}
	return pd, nil
}

// ApplyDefaults fills unset Options fields from project defaults. CLI
// flags are applied to Options before this call and always win;
// ApplyDefaults only fills in what the CLI left at its zero value.
func (o *Options) ApplyDefaults(pd ProjectDefaults) {
	if o.Arcfile == "" {
		o.Arcfile = pd.Arcfile
	}
	if o.Arcfile == "" {
		o.Arcfile = DefaultArcfile
	}
	if o.Profile == "" {
		o.Profile = pd.Profile
	}
	if o.Threads == 0 {
		o.Threads = pd.Threads
	}
	if o.StatusAddr == "" {
		o.StatusAddr = pd.StatusAddr
	}
	if o.CacheDir == "" {
		o.CacheDir = pd.CacheDir
	}
	if !o.Silent {
		o.Silent = pd.Silent
	}
	if !o.StopOnError {
		o.StopOnError = pd.StopOnError
	}
}

// ResolveThreads applies a three-way precedence: an
// explicit `using threads N` in the arcfile beats `.arcana.toml`, which
// beats hardware concurrency; the CLI flag, applied by the caller before
// this runs, outranks all of them (captured by threadsFromCLI).
func ResolveThreads(threadsFromCLI, threadsFromArcfile, threadsFromProject int) int {
	if threadsFromCLI > 0 {
		return threadsFromCLI
	}
	if threadsFromArcfile > 0 {
		return threadsFromArcfile
	}
	if threadsFromProject > 0 {
		return threadsFromProject
	}
	return runtime.NumCPU()
}

// ResolveInterpreter applies the same precedence for the default
// interpreter: CLI has no flag for this, so it is
// arcfile-`using`-directive over project-default over the platform's
// native shell.
func ResolveInterpreter(fromArcfile, fromProject string) string {
	if fromArcfile != "" {
		return fromArcfile
	}
	if fromProject != "" {
		return fromProject
	}
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "/bin/sh"
}
