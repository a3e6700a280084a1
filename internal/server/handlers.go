package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/version"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// uploadTitle names uploaded screenshots that carry no filename.
const uploadTitle = "upload"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	busy := !s.mu.TryLock()
	if !busy {
		s.mu.Unlock()
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Busy:    busy,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// extractHandler runs the pipeline against the live window.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body ExtractRequest
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
			s.writeErrorResponse(w, ErrCodeInvalidRequest, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
			return
		}
	}
	title := firstNonEmpty(body.Title, r.URL.Query().Get("title"), s.base.WindowTitle)
	if title == "" {
		s.writeErrorResponse(w, ErrCodeInvalidRequest, "No window title configured or provided", http.StatusBadRequest)
		return
	}
	format, err := pipeline.ParseFormat(firstNonEmpty(body.Format, r.URL.Query().Get("format"), string(pipeline.FormatJSON)))
	if err != nil {
		s.writeErrorResponse(w, ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	if s.live == nil {
		s.writeErrorResponse(w, ErrCodeInternal, "Extraction pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	res, err := s.run(r.Context(), "live", s.live, title, nil)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.writeResult(w, res, format)
}

// extractImageHandler runs the pipeline against an uploaded screenshot.
func (s *Server) extractImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.images == nil {
		s.writeErrorResponse(w, ErrCodeInternal, "Screenshot extraction not enabled", http.StatusServiceUnavailable)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, ErrCodeInvalidRequest, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, ErrCodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, ErrCodeInvalidRequest, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, ErrCodeInternal, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, ErrCodeInvalidRequest, "Invalid image format", http.StatusBadRequest)
		return
	}

	format, err := pipeline.ParseFormat(firstNonEmpty(r.FormValue("format"), string(pipeline.FormatJSON)))
	if err != nil {
		s.writeErrorResponse(w, ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	title := uploadTitle
	if header.Filename != "" {
		title = filepath.Base(header.Filename)
	}
	loc := window.NewImageLocator(window.NewImageWindow(title, img))
	res, err := s.run(r.Context(), "image", s.images(loc), title, nil)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.writeResult(w, res, format)
}

// run executes one extraction under the server lock with the configured
// timeout. Callers waiting on the lock give up when their context ends.
func (s *Server) run(ctx context.Context, kind string, ex Extractor, title string, obs pipeline.Observer) (*pipeline.Result, error) {
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	req := s.base
	req.WindowTitle = title
	req.Observer = obs

	start := time.Now()
	res, err := ex.Run(ctx, req)
	extractionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	switch {
	case res != nil && res.OK():
		extractionsTotal.WithLabelValues(kind, "ok").Inc()
	case res != nil:
		extractionsTotal.WithLabelValues(kind, "partial").Inc()
	default:
		extractionsTotal.WithLabelValues(kind, "error").Inc()
	}

	if res != nil {
		// A canceled run still carries the fields read before cancellation.
		return res, nil
	}
	return nil, err
}

// lock acquires the run lock or fails once ctx is done.
func (s *Server) lock(ctx context.Context) error {
	for !s.mu.TryLock() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

// writeResult renders res in format.
func (s *Server) writeResult(w http.ResponseWriter, res *pipeline.Result, format pipeline.Format) {
	switch format {
	case pipeline.FormatText, pipeline.FormatCSV:
		if format == pipeline.FormatCSV {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		opts := pipeline.ReportOptions{Format: format, Separator: s.separator}
		if err := pipeline.Report(w, res, opts, nil); err != nil {
			s.logger.Error("Failed to write result", "error", err)
		}
	default:
		text, err := pipeline.ToText(res, s.separator)
		if err != nil {
			s.writeErrorResponse(w, ErrCodeInternal, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, ExtractResponse{Success: res.OK(), Text: text, Result: res})
	}
}

// writeRunError maps a fatal run error to a status code.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, window.ErrNotFound):
		s.writeErrorResponse(w, ErrCodeWindowNotFound, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, ErrCodeTimeout, "Extraction timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		s.writeErrorResponse(w, ErrCodeBusy, "Request canceled", http.StatusServiceUnavailable)
	case errors.Is(err, pipeline.ErrInvalidRequest):
		s.writeErrorResponse(w, ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("Extraction failed", "error", err)
		s.writeErrorResponse(w, ErrCodeInternal, fmt.Sprintf("Extraction failed: %v", err), http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	s.writeJSON(w, statusCode, ExtractResponse{Success: false, Error: code, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
