package cmd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bankocr/internal/testutil"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

func TestExtractCommand(t *testing.T) {
	cmd := GetExtractCommand()
	assert.Equal(t, "extract", cmd.Use)

	bindings := map[string]string{
		"title":            "window.title",
		"activate":         "window.activate",
		"activation-delay": "window.activation_delay",
		"format":           "output.format",
		"output":           "output.file",
		"engine":           "ocr.engine",
	}
	for name, key := range bindings {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, "flag %s", name)
		assert.Equal(t, []string{key}, f.Annotations[configKeyAnnotation], "flag %s", name)
	}
	assert.Equal(t, "t", cmd.Flags().Lookup("title").Shorthand)
}

func TestExtractCommand_RequiresTitle(t *testing.T) {
	dir := t.TempDir()
	cfgPath := testutil.WriteFile(t, dir, "bankocr.yaml", `
log_level: warn
fields:
  bank_code: {region: "120,20,100,24"}
  bank_name: {region: "120,60,240,24"}
  branch_code: {region: "120,100,100,24"}
  branch_name: {region: "120,140,240,24"}
`)
	useEngine(t, testutil.NewScriptedEngine())

	_, _, err := executeCommand(t, "extract", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window.title is not set")
}

func TestExtractCommand_RejectsArguments(t *testing.T) {
	_, _, err := executeCommand(t, "extract", "振込入力")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestExtractCommand_NoLiveWindow(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("live window lookup is available on Windows")
	}
	cfgPath := writeTestConfig(t, t.TempDir())
	eng := testutil.NewScriptedEngine(testExtraction...)
	useEngine(t, eng)

	stdout, _, err := executeCommand(t, "extract", "--config", cfgPath, "--title", "振込入力")
	require.Error(t, err)
	assert.ErrorIs(t, err, window.ErrUnsupported)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, stdout, "nothing is reported without a window")
	assert.Zero(t, eng.Calls())
}
