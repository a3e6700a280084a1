package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single tesseract invocation.
const DefaultTimeout = 30 * time.Second

// CLI runs the tesseract executable once per image. The image is piped as
// PNG on stdin and the text read from stdout.
type CLI struct {
	Path        string
	TessdataDir string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// NewCLI returns a CLI engine for the given executable path.
func NewCLI(path, tessdataDir string, timeout time.Duration) *CLI {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CLI{Path: path, TessdataDir: tessdataDir, Timeout: timeout, Logger: slog.Default()}
}

// Args returns the command-line arguments for hint.
func (c *CLI) Args(hint Hint) []string {
	args := []string{"stdin", "stdout", "-l", hint.LanguageArg()}
	if hint.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(hint.PageSegMode))
	}
	if c.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.TessdataDir)
	}
	if hint.PreserveInterwordSpaces {
		args = append(args, "-c", "preserve_interword_spaces=1")
	}
	if hint.CharWhitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+hint.CharWhitelist)
	}
	return args
}

func (c *CLI) Recognize(ctx context.Context, img image.Image, hint Hint) (string, error) {
	if img == nil {
		return "", errors.New("nil image")
	}
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := c.Path
	if path == "" {
		path = "tesseract"
	}
	args := c.Args(hint)
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // G204: path comes from local configuration
	cmd.Stdin = &in
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("tesseract finished", "path", path, "args", args, "duration", time.Since(start), "error", err)

	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("tesseract: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ResolveTesseractPath prefers a tesseract binary bundled in a "tesseract"
// directory next to the running executable, then the configured path, then
// whatever "tesseract" resolves to on PATH.
func ResolveTesseractPath(configured string) string {
	exe, err := os.Executable()
	if err != nil {
		return resolveTesseractPath("", configured)
	}
	return resolveTesseractPath(filepath.Dir(exe), configured)
}

func resolveTesseractPath(exeDir, configured string) string {
	if exeDir != "" {
		name := "tesseract"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		bundled := filepath.Join(exeDir, "tesseract", name)
		if fi, err := os.Stat(bundled); err == nil && !fi.IsDir() {
			return bundled
		}
	}
	if configured != "" {
		return configured
	}
	return "tesseract"
}
