package support

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bankocr/internal/testutil"
	"github.com/MeKo-Tech/bankocr/internal/utils"
)

// sampleRegions matches testutil.DefaultLayout. Names are read with the
// English model so only eng.traineddata is needed; the crop drops the
// field frame.
const sampleRegions = `
log_level: warn
window:
  title: 振込入力
  activation_delay: 0s
preprocess:
  crop: {top: 2, bottom: 2, left: 2, right: 2}
fields:
  bank_code:
    region: "120,20,100,24"
  bank_name:
    region: "120,60,240,24"
    languages: [eng]
  branch_code:
    region: "120,100,100,24"
  branch_name:
    region: "120,140,240,24"
    languages: [eng]
`

// RegisterSteps registers every step definition of the CLI suite.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a config file with the sample field regions$`, testCtx.aConfigFileWithTheSampleFieldRegions)
	sc.Step(`^a config file without field regions$`, testCtx.aConfigFileWithoutFieldRegions)
	sc.Step(`^a synthetic window screenshot "([^"]*)"$`, testCtx.aSyntheticWindowScreenshot)
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
	sc.Step(`^tesseract is installed$`, testCtx.tesseractIsInstalled)
	sc.Step(`^live windows are not supported on this platform$`, testCtx.liveWindowsAreNotSupported)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRun)

	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be one result line per screenshot: (\d+)$`, testCtx.theOutputShouldBeResultLines)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}

func (testCtx *TestContext) aConfigFileWithTheSampleFieldRegions() error {
	testCtx.ConfigPath = filepath.Join(testCtx.TempDir, "bankocr.yaml")
	return os.WriteFile(testCtx.ConfigPath, []byte(sampleRegions), 0o600)
}

func (testCtx *TestContext) aConfigFileWithoutFieldRegions() error {
	testCtx.ConfigPath = filepath.Join(testCtx.TempDir, "empty.yaml")
	return os.WriteFile(testCtx.ConfigPath, []byte("log_level: warn\n"), 0o600)
}

func (testCtx *TestContext) aSyntheticWindowScreenshot(name string) error {
	return utils.SavePNG(filepath.Join(testCtx.TempDir, name), testutil.DefaultWindowScreenshot())
}

func (testCtx *TestContext) theEnvironmentVariableIs(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.expand(value))
	return nil
}

func (testCtx *TestContext) tesseractIsInstalled() error {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return godog.ErrSkip
	}
	return nil
}

func (testCtx *TestContext) liveWindowsAreNotSupported() error {
	if runtime.GOOS == "windows" {
		return godog.ErrSkip
	}
	return nil
}

func (testCtx *TestContext) iRun(args string) error {
	return testCtx.runCommand(args)
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("%s exited with %d, want %d\nstdout: %s\nstderr: %s",
			testCtx.LastCommand, testCtx.LastExitCode, code, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(s string) error {
	if !strings.Contains(testCtx.LastOutput, testCtx.expand(s)) {
		return fmt.Errorf("output does not contain %q:\n%s", s, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(s string) error {
	if strings.Contains(testCtx.LastOutput, testCtx.expand(s)) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", s, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorOutputShouldContain(s string) error {
	if !strings.Contains(testCtx.LastStderr, testCtx.expand(s)) {
		return fmt.Errorf("error output does not contain %q:\n%s", s, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBeResultLines accepts complete and partial runs: each line
// must hold four positions.
func (testCtx *TestContext) theOutputShouldBeResultLines(n int) error {
	if testCtx.LastExitCode != 0 && testCtx.LastExitCode != 2 {
		return fmt.Errorf("%s exited with %d\nstderr: %s", testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastStderr)
	}
	lines := strings.Split(strings.TrimRight(testCtx.LastOutput, "\n"), "\n")
	if len(lines) != n {
		return fmt.Errorf("got %d lines, want %d:\n%s", len(lines), n, testCtx.LastOutput)
	}
	for _, line := range lines {
		if got := strings.Count(line, "："); got != 3 {
			return fmt.Errorf("line %q has %d separators, want 3", line, got)
		}
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(filepath.Join(testCtx.TempDir, testCtx.expand(name))); err != nil {
		return fmt.Errorf("expected file %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, s string) error {
	b, err := os.ReadFile(filepath.Join(testCtx.TempDir, testCtx.expand(name))) //nolint:gosec // G304: scenario file
	if err != nil {
		return err
	}
	if !strings.Contains(string(b), s) {
		return fmt.Errorf("%s does not contain %q:\n%s", name, s, string(b))
	}
	return nil
}
