package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
)

func TestImageCommand(t *testing.T) {
	cmd := GetImageCommand()
	assert.Equal(t, "image <screenshot>...", cmd.Use)
	for _, name := range []string{"format", "output", "separator", "progress", "engine", "tesseract-path", "corrections", "debug-dir"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, []string{"output.format"}, cmd.Flags().Lookup("format").Annotations[configKeyAnnotation])

	usage := cmd.Flags().Lookup("corrections").Usage
	assert.Contains(t, usage, "pattern = replacement")
	assert.NotContains(t, usage, "CSV", "corrections files are YAML or text")
}

func TestImageCommand_Text(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	eng := testutil.NewScriptedEngine(testExtraction...)
	useEngine(t, eng)

	stdout, _, err := executeCommand(t, "image", shot, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, wantLine+"\n", stdout)
	assert.Equal(t, 4, eng.Calls())
	assert.Equal(t, []string{"eng"}, eng.Hints[0].Languages)
	assert.Equal(t, []string{"jpn"}, eng.Hints[1].Languages)
}

func TestImageCommand_SeparatorFlag(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	useEngine(t, testutil.NewScriptedEngine(testExtraction...))

	stdout, _, err := executeCommand(t, "image", shot, "--config", cfgPath, "--separator", "|")
	require.NoError(t, err)
	assert.Equal(t, "0005|三菱UFJ銀行|001|本店\n", stdout)
}

func TestImageCommand_JSONToFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	out := filepath.Join(dir, "results", "out.json")
	useEngine(t, testutil.NewScriptedEngine(testExtraction...))

	stdout, _, err := executeCommand(t, "image", shot, "--config", cfgPath, "-f", "json", "-o", out)
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, stdout, string(b))

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(b, &res))
	assert.Equal(t, "shot.png", res.WindowTitle())
	assert.True(t, res.OK())
	assert.Equal(t, "三菱UFJ銀行", res.Fields()[1].Corrected)
}

func TestImageCommand_PartialResult(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	eng := testutil.NewScriptedEngine()
	eng.Push(
		testutil.Reply{Text: "0005"},
		testutil.Reply{Err: errors.New("tesseract exited with status 1")},
		testutil.Reply{Text: "001"},
		testutil.Reply{Text: "本店"},
	)
	useEngine(t, eng)

	stdout, stderr, err := executeCommand(t, "image", shot, "--config", cfgPath, "--progress")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialResult)
	assert.Equal(t, 2, ExitCode(err))

	assert.Equal(t, "0005：：001：本店\n", stdout, "failed fields keep their position")
	assert.Contains(t, stderr, "BankName: failed")
	assert.Contains(t, stderr, "3/4 fields")
}

func TestImageCommand_MultipleScreenshots(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	first := writeScreenshot(t, dir, "a.png")
	second := writeScreenshot(t, dir, "b.png")
	out := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(out, []byte("stale\n"), 0o600))

	eng := testutil.NewScriptedEngine(testExtraction...)
	eng.Push(
		testutil.Reply{Text: "0009"},
		testutil.Reply{Text: "みずほ銀行"},
		testutil.Reply{Text: "100"},
		testutil.Reply{Text: "東京営業部"},
	)
	useEngine(t, eng)

	stdout, _, err := executeCommand(t, "image", first, second, "--config", cfgPath, "--format", "csv", "--output", out)
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, stdout, string(b), "the file is replaced, then appended to")
	assert.NotContains(t, string(b), "stale")
	assert.Contains(t, string(b), "三菱UFJ銀行")
	assert.Contains(t, string(b), "東京営業部")
}

func TestImageCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	noRegions := testutil.WriteFile(t, dir, "empty.yaml", "log_level: warn\n")
	textFile := testutil.WriteFile(t, dir, "notes.txt", "not an image")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no arguments", []string{"image", "--config", cfgPath}, "requires at least 1 arg"},
		{"missing file", []string{"image", filepath.Join(dir, "missing.png"), "--config", cfgPath}, "failed to load"},
		{"unsupported file", []string{"image", textFile, "--config", cfgPath}, "unsupported format"},
		{"regions not set", []string{"image", shot, "--config", noRegions}, "fields.bank_code.region is not set"},
		{"bad format", []string{"image", shot, "--config", cfgPath, "--format", "xml"}, "invalid output.format"},
		{"bad engine", []string{"image", shot, "--config", cfgPath, "--engine", "paddle"}, "invalid ocr.engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useEngine(t, testutil.NewScriptedEngine(testExtraction...))
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 1, ExitCode(err))
		})
	}
}

func TestImageCommand_CorrectionsFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	shot := writeScreenshot(t, dir, "shot.png")
	rules := testutil.WriteFile(t, dir, "rules.txt", "# misread branch names\n本后 = 本店\n")
	useEngine(t, testutil.NewScriptedEngine("0005", "三菱UFJ銀行", "001", "本后"))

	stdout, _, err := executeCommand(t, "image", shot, "--config", cfgPath, "--corrections", rules)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stdout), "：本店"), stdout)
}
