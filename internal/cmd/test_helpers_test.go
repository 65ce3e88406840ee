package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testEnv is an isolated config file and database for one test.
type testEnv struct {
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("NO_COLOR", "1")
	return testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "ringq.db"),
	}
}

// run executes the root command with the env's config and database and
// returns what it wrote to stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runWithInput(t, "", args...)
}

// runWithInput is run with stdin set to input.
func (e testEnv) runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetGlobals(t)

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", e.configPath, "--db", e.dbPath}, args...))
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("ringq %v: %v", args, err)
	}
	return out
}

// resetGlobals clears flag variables left over from a previous Execute.
func resetGlobals(t *testing.T) {
	t.Helper()
	configPath = ""
	dbPath = ""
	queueName = ""
	pushBool = false
	pushManyBool = false
	statusJSON = false
	watchInterval = time.Second
}
