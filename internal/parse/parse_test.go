package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArcfile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileParsesVariablesAndTask(t *testing.T) {
	dir := t.TempDir()
	path := writeArcfile(t, dir, "arcfile", "X = hello\ntask Main() { echo {arc:X} }\n")

	env, err := File(path)
	require.NoError(t, err)
	require.Contains(t, env.Vtable, "X")
	assert.Equal(t, "hello", env.Vtable["X"].Value)
	require.Contains(t, env.Ftable, "Main")
	assert.Equal(t, []string{"echo {arc:X}"}, env.Ftable["Main"].Instructions)
}

func TestFileMergesImportWithoutOverwriting(t *testing.T) {
	dir := t.TempDir()
	writeArcfile(t, dir, "shared.arc", "Y = from-import\n")
	path := writeArcfile(t, dir, "arcfile", "X = main\nimport shared.arc\n")

	env, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, "main", env.Vtable["X"].Value)
	assert.Equal(t, "from-import", env.Vtable["Y"].Value)
}

func TestFileImportDoesNotOverwriteExistingEntry(t *testing.T) {
	dir := t.TempDir()
	writeArcfile(t, dir, "shared.arc", "X = from-import\n")
	path := writeArcfile(t, dir, "arcfile", "X = main\nimport shared.arc\n")

	env, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, "main", env.Vtable["X"].Value)
}

func TestFileDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeArcfile(t, dir, "a.arc", "import b.arc\n")
	writeArcfile(t, dir, "b.arc", "import a.arc\n")

	_, err := File(filepath.Join(dir, "a.arc"))
	assert.Error(t, err)
}

func TestFileReportsGrammarErrorOnUnexpectedToken(t *testing.T) {
	dir := t.TempDir()
	path := writeArcfile(t, dir, "arcfile", "task\n")

	_, err := File(path)
	assert.Error(t, err)
}
