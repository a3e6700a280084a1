package cmd

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
)

// testConfig places the regions of the synthetic window and disables the
// activation delay.
const testConfig = `
log_level: warn
window:
  title: 振込入力
  activation_delay: 0s
fields:
  bank_code:
    region: "120,20,100,24"
  bank_name:
    region: "120,60,240,24"
  branch_code:
    region: "120,100,100,24"
  branch_name:
    region: "120,140,240,24"
corrections:
  - pattern: 級行
    replacement: 銀行
`

// testExtraction is the engine script for a fully successful run.
var testExtraction = []string{"0005\n", "三菱ＵＦＪ級行\n", "0 0 1", "本店\n"}

const wantLine = "0005：三菱UFJ銀行：001：本店"

// writeTestConfig writes testConfig into dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, "bankocr.yaml", testConfig)
}

// writeScreenshot saves the default synthetic window as dir/name.
func writeScreenshot(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testutil.SaveImage(t, testutil.DefaultWindowScreenshot(), path)
	return path
}

// useEngine makes every command use eng for the duration of the test.
func useEngine(t *testing.T, eng engine.Engine) {
	t.Helper()
	old := newEngine
	newEngine = func(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) { return eng, nil }
	t.Cleanup(func() { newEngine = old })
}

// resetFlags restores every flag in the tree to its default so state from a
// previous Execute does not leak into the next one.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs the root command with args and captures its output.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	oldLogger := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
		globalConfig = nil
		configLoader = nil
	})

	root := GetRootCommand()
	resetFlags(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
