// Package pipeline runs the four-field extraction: locate the window, then
// capture, preprocess, recognize and correct each field in turn, and
// aggregate the outcomes into a Result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/bankocr/internal/correction"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/recognizer"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

var (
	// ErrEmptyAfterCorrection marks a field whose text vanished during correction.
	ErrEmptyAfterCorrection = errors.New("no text left after correction")

	// ErrInvalidRequest wraps Request.Validate failures returned by Run.
	ErrInvalidRequest = errors.New("invalid request")
)

// Request describes one run. Overrides replaces the preprocess settings of
// individual fields.
type Request struct {
	WindowTitle string
	Fields      []fields.Spec
	Preprocess  preprocess.Config
	Overrides   map[fields.ID]preprocess.Config
	Rules       correction.Rules

	// Observer receives this run's events in addition to the runner's own.
	Observer Observer
}

// Validate checks the parts of a request that make a run impossible.
func (r Request) Validate() error {
	if r.WindowTitle == "" {
		return errors.New("window title cannot be empty")
	}
	if len(r.Fields) == 0 {
		return errors.New("no fields to extract")
	}
	seen := make(map[fields.ID]bool, len(r.Fields))
	for _, spec := range r.Fields {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.ID] {
			return fmt.Errorf("field %s listed twice", spec.ID)
		}
		seen[spec.ID] = true
	}
	if err := r.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid corrections: %w", err)
	}
	return nil
}

// PreprocessFor returns the preprocess settings for id.
func (r Request) PreprocessFor(id fields.ID) preprocess.Config {
	if cfg, ok := r.Overrides[id]; ok {
		return cfg
	}
	return r.Preprocess
}

// Options configures a Runner.
type Options struct {
	Activate        bool
	ActivationDelay time.Duration
	Clean           recognizer.CleanOptions
	Observer        Observer
	Logger          *slog.Logger
}

// DefaultOptions activates the window and waits half a second before capture.
func DefaultOptions() Options {
	return Options{
		Activate:        true,
		ActivationDelay: 500 * time.Millisecond,
		Clean:           recognizer.DefaultCleanOptions(),
	}
}

// Runner executes extraction runs. A Runner may be reused but runs against
// one window should not overlap.
type Runner struct {
	locator    window.Locator
	recognizer *recognizer.Recognizer
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner wires a locator and a recognizer.
func NewRunner(loc window.Locator, rec *recognizer.Recognizer, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = NoOpObserver{}
	}
	return &Runner{locator: loc, recognizer: rec, opts: opts, logger: opts.Logger, now: time.Now}
}

// NewRunnerWithEngine builds the recognizer from eng with default settings.
func NewRunnerWithEngine(loc window.Locator, eng engine.Engine, opts Options) *Runner {
	return NewRunner(loc, recognizer.New(eng, recognizer.DefaultConfig(), opts.Logger), opts)
}

// Run extracts every requested field. A window that cannot be found ends the
// run with a nil Result. Otherwise a Result is always returned; field
// failures are recorded in it. Cancellation is honoured between fields and
// returns the partial Result together with the context error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	obs := NewMultiObserver(r.opts.Observer, req.Observer)
	start := r.now()
	emit := func(s State, id fields.ID, fr *FieldResult) {
		obs.OnEvent(Event{State: s, Field: id, Result: fr, Time: r.now()})
	}
	emit(StateIdle, 0, nil)

	if err := req.Validate(); err != nil {
		runsTotal.WithLabelValues("invalid").Inc()
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		obs.OnError(err)
		return nil, err
	}

	win, err := r.locator.Locate(ctx, req.WindowTitle)
	if err != nil {
		if !errors.Is(err, window.ErrNotFound) {
			err = fmt.Errorf("failed to locate window: %w", err)
		}
		runsTotal.WithLabelValues("window_not_found").Inc()
		r.logger.Error("Window lookup failed", "title", req.WindowTitle, "error", err)
		obs.OnError(err)
		return nil, err
	}
	r.logger.Debug("Window located", "title", win.Title(), "state", StateWindowLocated)
	emit(StateWindowLocated, 0, nil)
	obs.OnStart(len(req.Fields))

	r.activate(ctx, win)

	// Per-run copy so stage callbacks reach this run's observers only.
	rec := *r.recognizer
	var timer stageTimer
	rec.OnStage = func(id fields.ID, stage recognizer.Stage) {
		timer.enter(string(stage), r.now())
		r.logger.Debug("Field state", "field", id.String(), "state", stage)
		emit(State(stage), id, nil)
	}

	res := newResult(win.Title(), start)
	var runErr error
	for _, spec := range req.Fields {
		if runErr == nil {
			runErr = ctx.Err()
		}
		if runErr != nil {
			fr := FieldResult{Field: spec.ID, Status: StatusFailed, ErrorKind: KindCanceled, Reason: ReasonCanceled}
			res.set(fr)
			recordField(fr)
			emit(StateDone, spec.ID, &fr)
			continue
		}
		fr := r.runField(ctx, &rec, &timer, emit, spec, win, req)
		res.set(fr)
		recordField(fr)
		emit(StateDone, spec.ID, &fr)
	}

	res.duration = r.now().Sub(start)
	emit(StateAggregated, 0, nil)
	runDuration.Observe(res.duration.Seconds())
	if runErr != nil {
		runsTotal.WithLabelValues("canceled").Inc()
		r.logger.Warn("Extraction canceled", "succeeded", res.Succeeded(), "error", runErr)
	} else {
		runsTotal.WithLabelValues(runStatus(res)).Inc()
	}
	obs.OnComplete(res)
	return res, runErr
}

func (r *Runner) runField(ctx context.Context, rec *recognizer.Recognizer, timer *stageTimer,
	emit func(State, fields.ID, *FieldResult), spec fields.Spec, win window.Window, req Request,
) FieldResult {
	start := r.now()
	timer.reset()
	fr := FieldResult{Field: spec.ID}

	// A field that has started runs to completion even if ctx is canceled.
	raw, err := rec.Recognize(context.WithoutCancel(ctx), spec, win, req.PreprocessFor(spec.ID))
	if err == nil {
		timer.enter(string(StateCorrecting), r.now())
		emit(StateCorrecting, spec.ID, nil)
		fr.Raw = raw
		fr.Corrected = r.correct(raw, spec, req.Rules)
		if fr.Corrected == "" {
			err = &recognizer.RecognitionError{Field: spec.ID, Err: ErrEmptyAfterCorrection}
		}
	}
	timer.finish(r.now())
	fr.Duration = r.now().Sub(start)

	if err != nil {
		fr.Corrected = ""
		fr.Status = StatusFailed
		fr.ErrorKind = classify(err)
		fr.Reason = err.Error()
		return fr
	}
	fr.Status = StatusOK
	return fr
}

func (r *Runner) correct(raw string, spec fields.Spec, rules correction.Rules) string {
	return Correct(raw, spec, rules, r.opts.Clean)
}

// Correct turns raw engine output into the field value. Rules see the text
// as the engine produced it, minus blank lines and invisible characters;
// normalization runs afterwards.
func Correct(raw string, spec fields.Spec, rules correction.Rules, clean recognizer.CleanOptions) string {
	text := recognizer.TidyText(raw, clean)
	text = rules.ForField(spec.ID).Apply(text)
	text = recognizer.NormalizeText(text, clean)
	return recognizer.FilterForKind(text, spec.Kind)
}

func (r *Runner) activate(ctx context.Context, win window.Window) {
	if !r.opts.Activate {
		return
	}
	if err := win.Activate(); err != nil {
		r.logger.Warn("Failed to activate window", "title", win.Title(), "error", err)
		return
	}
	if r.opts.ActivationDelay <= 0 {
		return
	}
	t := time.NewTimer(r.opts.ActivationDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// stageTimer observes how long each stage of a field took.
type stageTimer struct {
	stage string
	since time.Time
}

func (s *stageTimer) reset() { s.stage = "" }

func (s *stageTimer) enter(stage string, now time.Time) {
	s.finish(now)
	s.stage, s.since = stage, now
}

func (s *stageTimer) finish(now time.Time) {
	if s.stage != "" {
		stageDuration.WithLabelValues(s.stage).Observe(now.Sub(s.since).Seconds())
	}
	s.stage = ""
}
