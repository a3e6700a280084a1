package pipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MeKo-Tech/bankocr/internal/capture"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
)

// Status is the outcome of a single field.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ErrorKind classifies why a field failed.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindCapture     ErrorKind = "capture"
	KindPreprocess  ErrorKind = "preprocess"
	KindRecognition ErrorKind = "recognition"
	KindCanceled    ErrorKind = "canceled"
)

// ReasonCanceled is recorded for fields skipped after the context was canceled.
const ReasonCanceled = "canceled"

// FieldResult is the outcome for one field. Corrected is only set when
// Status is ok.
type FieldResult struct {
	Field     fields.ID     `json:"field"`
	Raw       string        `json:"raw,omitempty"`
	Corrected string        `json:"value"`
	Status    Status        `json:"status"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// OK reports whether the field was extracted.
func (f FieldResult) OK() bool { return f.Status == StatusOK }

// classify maps a field error to its kind. Anything that is neither a
// capture nor a preprocess failure happened at or after recognition.
func classify(err error) ErrorKind {
	var ce *capture.Error
	if errors.As(err, &ce) {
		return KindCapture
	}
	var pe *preprocess.Error
	if errors.As(err, &pe) {
		return KindPreprocess
	}
	return KindRecognition
}

// Result is the aggregated outcome of a run. It is not modified after Run
// returns; accessors hand out copies.
type Result struct {
	windowTitle string
	startedAt   time.Time
	duration    time.Duration
	order       []fields.ID
	fields      map[fields.ID]FieldResult
}

func newResult(title string, startedAt time.Time) *Result {
	return &Result{windowTitle: title, startedAt: startedAt, fields: make(map[fields.ID]FieldResult, len(fields.All))}
}

func (r *Result) set(fr FieldResult) {
	if _, ok := r.fields[fr.Field]; !ok {
		r.order = append(r.order, fr.Field)
	}
	r.fields[fr.Field] = fr
}

// WindowTitle is the title of the window the fields were read from.
func (r *Result) WindowTitle() string { return r.windowTitle }

// StartedAt is when the run began.
func (r *Result) StartedAt() time.Time { return r.startedAt }

// Duration is the wall time of the run up to aggregation.
func (r *Result) Duration() time.Duration { return r.duration }

// Len returns the number of recorded fields.
func (r *Result) Len() int { return len(r.order) }

// Field returns the result for id.
func (r *Result) Field(id fields.ID) (FieldResult, bool) {
	fr, ok := r.fields[id]
	return fr, ok
}

// Value returns the corrected text of id, or "" when it failed or was not requested.
func (r *Result) Value(id fields.ID) string {
	fr, ok := r.fields[id]
	if !ok || !fr.OK() {
		return ""
	}
	return fr.Corrected
}

// Fields returns all field results in extraction order.
func (r *Result) Fields() []FieldResult {
	out := make([]FieldResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.fields[id])
	}
	return out
}

// Failed returns the fields that need manual transcription.
func (r *Result) Failed() []FieldResult {
	var out []FieldResult
	for _, fr := range r.Fields() {
		if !fr.OK() {
			out = append(out, fr)
		}
	}
	return out
}

// Succeeded counts the fields that were extracted.
func (r *Result) Succeeded() int { return r.Len() - len(r.Failed()) }

// OK reports whether every field was extracted.
func (r *Result) OK() bool { return r.Len() > 0 && len(r.Failed()) == 0 }

type resultJSON struct {
	WindowTitle string        `json:"window_title"`
	StartedAt   time.Time     `json:"started_at"`
	DurationNs  int64         `json:"duration_ns"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Fields      []FieldResult `json:"fields"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	failed := len(r.Failed())
	return json.Marshal(resultJSON{
		WindowTitle: r.windowTitle,
		StartedAt:   r.startedAt,
		DurationNs:  int64(r.duration),
		Succeeded:   r.Len() - failed,
		Failed:      failed,
		Fields:      r.Fields(),
	})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = *newResult(in.WindowTitle, in.StartedAt)
	r.duration = time.Duration(in.DurationNs)
	for _, fr := range in.Fields {
		r.set(fr)
	}
	return nil
}
