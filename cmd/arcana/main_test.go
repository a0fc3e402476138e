package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "", opts.Task)
	assert.True(t, opts.StopOnError)
}

func TestParseArgsSpaceSeparatedFlags(t *testing.T) {
	opts, err := parseArgs([]string{"-s", "project.arc", "-p", "Release", "-t", "4", "Build"})
	require.NoError(t, err)
	assert.Equal(t, "project.arc", opts.Arcfile)
	assert.Equal(t, "Release", opts.Profile)
	assert.Equal(t, 4, opts.Threads)
	assert.Equal(t, "Build", opts.Task)
}

func TestParseArgsEqualsSeparatedFlags(t *testing.T) {
	opts, err := parseArgs([]string{"-s=project.arc", "-p=Release", "-t=4", "Build"})
	require.NoError(t, err)
	assert.Equal(t, "project.arc", opts.Arcfile)
	assert.Equal(t, "Release", opts.Profile)
	assert.Equal(t, 4, opts.Threads)
	assert.Equal(t, "Build", opts.Task)
}

func TestParseArgsThreadsMustBePositive(t *testing.T) {
	_, err := parseArgs([]string{"-t", "0"})
	require.Error(t, err)

	_, err = parseArgs([]string{"-t", "nope"})
	require.Error(t, err)
}

func TestParseArgsGenerateWithAndWithoutTarget(t *testing.T) {
	opts, err := parseArgs([]string{"--generate"})
	require.NoError(t, err)
	assert.Equal(t, "stdout", opts.Generate)

	opts, err = parseArgs([]string{"--generate", "out.arc"})
	require.NoError(t, err)
	assert.Equal(t, "out.arc", opts.Generate)

	opts, err = parseArgs([]string{"--generate=out.arc"})
	require.NoError(t, err)
	assert.Equal(t, "out.arc", opts.Generate)
}

func TestParseArgsBooleanFlags(t *testing.T) {
	opts, err := parseArgs([]string{"--debug", "--flush-cache", "--watch", "--silent", "--version", "--help"})
	require.NoError(t, err)
	assert.True(t, opts.Debug)
	assert.True(t, opts.FlushCache)
	assert.True(t, opts.Watch)
	assert.True(t, opts.Silent)
	assert.True(t, opts.Version)
	assert.True(t, opts.Help)
}

func TestParseArgsStatusAddr(t *testing.T) {
	opts, err := parseArgs([]string{"--status-addr", "127.0.0.1:8420"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8420", opts.StatusAddr)

	opts, err = parseArgs([]string{"--status-addr=127.0.0.1:8420"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8420", opts.StatusAddr)
}

func TestParseArgsCacheDir(t *testing.T) {
	opts, err := parseArgs([]string{"--cache-dir", "build-cache"})
	require.NoError(t, err)
	assert.Equal(t, "build-cache", opts.CacheDir)

	opts, err = parseArgs([]string{"--cache-dir=build-cache"})
	require.NoError(t, err)
	assert.Equal(t, "build-cache", opts.CacheDir)
}

func TestParseArgsUnknownFlagRejected(t *testing.T) {
	_, err := parseArgs([]string{"--nope"})
	require.Error(t, err)
}

func TestParseArgsDuplicatePositionalRejected(t *testing.T) {
	_, err := parseArgs([]string{"Build", "Clean"})
	require.Error(t, err)
}

func TestParseArgsMissingValueRejected(t *testing.T) {
	_, err := parseArgs([]string{"-s"})
	require.Error(t, err)
}

func TestRunGenerateToStdoutDoesNotError(t *testing.T) {
	err := runGenerate("stdout")
	require.NoError(t, err)
}

func TestScriptExtensionIsShOnUnix(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("windows path separator in this environment")
	}
	assert.Equal(t, ".sh", scriptExtension())
}
