package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(append(args, "--no-color"), &stdout, &stderr)
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ok.py", `
def f(x: int | None):
    if x is None:
        reveal_type(x)
`)

	out, err := run(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+":4:9: info: Type of \"x\" is \"None\"")
	assert.Contains(t, out, "1 file, 0 errors, 0 warnings")
}

func TestCheckCommandFailsOnErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.py", "x: int = 1\n")
	writeFile(t, dir, "bad.py", "y: int = \"a\"\n")

	out, err := run(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 files failed", err.Error())
	assert.Contains(t, out, "is not assignable to declared type \"int\"")
	assert.Contains(t, out, "2 files, 1 error, 0 warnings")
}

func TestCheckCommandMissingFile(t *testing.T) {
	out, err := run(t, "check", filepath.Join(t.TempDir(), "missing.py"))
	require.Error(t, err)
	assert.Contains(t, out, "source not found")
}

func TestNarrowCommand(t *testing.T) {
	out, err := run(t, "narrow", "--decl", "x: int | None", "--test", "x is None")
	require.NoError(t, err)
	assert.Equal(t, `reference: x
declared:  int | None
positive:  None
negative:  int
`, out)
}

func TestNarrowCommandSource(t *testing.T) {
	out, err := run(t, "narrow", "-d", "x: int | None", "-t", "x is not None", "--source")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `def __narrow__(x: int | None):
    reveal_type(x)
    if x is not None:
        reveal_type(x)
    else:
        reveal_type(x)
reference: x
`), out)
}

func TestNarrowCommandWithPrelude(t *testing.T) {
	prelude := writeFile(t, t.TempDir(), "prelude.py", `
class Cat:
    pass

class Dog:
    pass
`)
	out, err := run(t, "narrow", "-p", prelude, "-d", "pet: Cat | Dog", "-t", "isinstance(pet, Cat)")
	require.NoError(t, err)
	assert.Contains(t, out, "positive:  Cat\n")
	assert.Contains(t, out, "negative:  Dog\n")
}

func TestNarrowCommandErrors(t *testing.T) {
	_, err := run(t, "narrow", "--decl", "x: int")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--test is required")

	_, err = run(t, "narrow", "--decl", "x: int", "--test", "y is None")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario has errors")
}

func TestExplainCommand(t *testing.T) {
	out, err := run(t, "explain", "--decl", "x: int | str", "--test", "isinstance(x, int)")
	require.NoError(t, err)
	assert.Contains(t, out, "declared:  int | str\n")
	assert.Contains(t, out, "positive: isinstance")
	assert.Contains(t, out, "-> int\n")
	assert.Contains(t, out, "-> str\n")
}

func TestExplainCommandDump(t *testing.T) {
	out, err := run(t, "explain", "-d", "x: int | None", "-t", "x is not None", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, `Rule: (string) (len=7) "is-none"`)
	assert.Contains(t, out, `Narrowed: (string) (len=3) "int"`)
}

func TestExplainCommandNoNarrowing(t *testing.T) {
	out, err := run(t, "explain", "-d", "x: int", "-d", "flag: bool", "-r", "x", "-t", "flag")
	require.NoError(t, err)
	assert.Contains(t, out, "positive: no narrowing\n")
	assert.Contains(t, out, "negative: no narrowing\n")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "narrowck dev\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}
