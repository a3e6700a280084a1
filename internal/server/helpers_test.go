package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bankocr/internal/correction"
	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

const (
	testWindowTitle = "振込入力 - Bank App"
	testQueryTitle  = "振込入力"
)

// testExtraction is the engine script for a fully successful run.
var testExtraction = []string{"0005\n", "三菱ＵＦＪ級行\n", "0 0 1", "本店\n"}

func testBaseRequest() pipeline.Request {
	return pipeline.Request{
		WindowTitle: testQueryTitle,
		Fields:      testutil.DefaultSpecs(),
		Preprocess:  preprocess.DefaultConfig(),
		Rules:       correction.Rules{{Pattern: "級行", Replacement: "銀行"}},
	}
}

func testRunnerOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.ActivationDelay = 0
	opts.Logger = slog.New(slog.DiscardHandler)
	return opts
}

// newTestServer serves a synthetic bank window read by eng. Uploaded
// screenshots are read by the same engine.
func newTestServer(eng *testutil.ScriptedEngine) *Server {
	win := window.NewImageWindow(testWindowTitle, testutil.DefaultWindowScreenshot())
	live := pipeline.NewRunnerWithEngine(window.NewImageLocator(win), eng, testRunnerOptions())
	images := func(loc window.Locator) Extractor {
		opts := testRunnerOptions()
		opts.Activate = false
		return pipeline.NewRunnerWithEngine(loc, eng, opts)
	}
	return NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  5,
		Request:     testBaseRequest(),
		Logger:      slog.New(slog.DiscardHandler),
	}, live, images)
}

// stubExtractor returns a fixed outcome and records requests.
type stubExtractor struct {
	res  *pipeline.Result
	err  error
	reqs []pipeline.Request
}

func (s *stubExtractor) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.reqs = append(s.reqs, req)
	return s.res, s.err
}

var errBoom = errors.New("boom")

// encodePNG encodes an image to PNG bytes.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newUploadRequest creates a multipart POST /extract/image request.
func newUploadRequest(t *testing.T, data []byte, filename string, extra map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if data != nil {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for key, value := range extra {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract/image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
