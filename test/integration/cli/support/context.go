package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	BinPath    string
	TempDir    string
	ConfigPath string
	EnvVars    []string
}

// NewTestContext creates a context running binPath inside a fresh
// temporary directory.
func NewTestContext(binPath string) (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "bankocr-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{BinPath: binPath, TempDir: tempDir}, nil
}

// Cleanup removes the scenario's temporary directory.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// expand replaces {tmp} and {config} in s.
func (testCtx *TestContext) expand(s string) string {
	return strings.NewReplacer("{tmp}", testCtx.TempDir, "{config}", testCtx.ConfigPath).Replace(s)
}

// runCommand runs the binary with the whitespace-separated args. HOME points
// at the scenario directory so no user configuration is picked up.
func (testCtx *TestContext) runCommand(args string) error {
	argv := strings.Fields(testCtx.expand(args))
	testCtx.LastCommand = "bankocr " + strings.Join(argv, " ")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, testCtx.BinPath, argv...) //nolint:gosec // G204: test binary with scenario arguments
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), "HOME="+testCtx.TempDir, "XDG_CONFIG_HOME="+testCtx.TempDir)
	cmd.Env = append(cmd.Env, testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastExitCode = 0

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		testCtx.LastExitCode = exitErr.ExitCode()
	case err != nil:
		return fmt.Errorf("failed to run %s: %w", testCtx.LastCommand, err)
	}
	return nil
}
