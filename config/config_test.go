package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Sources{
		File:    writeFile(t, dir, "c.yaml", ""),
		EnvFile: writeFile(t, dir, "c.env", ""),
		Getenv:  env(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "narrowck.yaml", `
log_level: info
color: false
max_errors: 10
max_loop_iterations: 8
`)
	envPath := writeFile(t, dir, ".env", "NARROWCK_MAX_ERRORS=20\nNARROWCK_SHOW_INFO=false\n")

	cfg, err := Load(Sources{
		File:    yamlPath,
		EnvFile: envPath,
		Getenv:  env(map[string]string{"NARROWCK_MAX_ERRORS": "30", "NARROWCK_LOG_LEVEL": "debug"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Color)
	assert.Equal(t, 30, cfg.MaxErrors)
	assert.Equal(t, 8, cfg.MaxLoopIterations)
	assert.False(t, cfg.ShowInfo)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.env", "")

	_, err := Load(Sources{File: filepath.Join(dir, "missing.yaml"), EnvFile: empty, Getenv: env(nil)})
	assert.ErrorContains(t, err, "reading config")

	bad := writeFile(t, dir, "bad.yaml", "max_errors: [1\n")
	_, err = Load(Sources{File: bad, EnvFile: empty, Getenv: env(nil)})
	assert.ErrorContains(t, err, "parsing config")

	ok := writeFile(t, dir, "ok.yaml", "")
	_, err = Load(Sources{File: ok, EnvFile: empty, Getenv: env(map[string]string{"NARROWCK_COLOR": "maybe"})})
	assert.ErrorContains(t, err, "NARROWCK_COLOR")

	_, err = Load(Sources{File: ok, EnvFile: empty, Getenv: env(map[string]string{"NARROWCK_LOG_LEVEL": "loud"})})
	assert.ErrorContains(t, err, "log_level")

	_, err = Load(Sources{File: ok, EnvFile: empty, Getenv: env(map[string]string{"NARROWCK_MAX_LOOP_ITERATIONS": "0"})})
	assert.ErrorContains(t, err, "max_loop_iterations")
}
