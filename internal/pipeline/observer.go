package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

// Event is a state transition. Field is only meaningful when the state is
// field scoped; Result is set on StateDone.
type Event struct {
	State  State        `json:"state"`
	Field  fields.ID    `json:"-"`
	Result *FieldResult `json:"result,omitempty"`
	Time   time.Time    `json:"time"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Field string `json:"field,omitempty"`
	}{plain: plain(e)}
	if e.State.FieldScoped() {
		out.Field = e.Field.String()
	}
	return json.Marshal(out)
}

// Observer receives run progress.
type Observer interface {
	// OnStart is called once the window is located with the number of fields to read.
	OnStart(total int)

	// OnEvent is called for every state transition.
	OnEvent(ev Event)

	// OnComplete is called with the aggregated result.
	OnComplete(res *Result)

	// OnError is called when the run ends without a result.
	OnError(err error)
}

// NoOpObserver implements Observer but does nothing.
type NoOpObserver struct{}

func (NoOpObserver) OnStart(total int)      {}
func (NoOpObserver) OnEvent(ev Event)       {}
func (NoOpObserver) OnComplete(res *Result) {}
func (NoOpObserver) OnError(err error)      {}

// ConsoleObserver prints one line per finished field.
type ConsoleObserver struct {
	writer io.Writer
	prefix string
	mutex  sync.Mutex
	total  int
	done   int
}

// NewConsoleObserver creates a console progress reporter.
func NewConsoleObserver(writer io.Writer, prefix string) *ConsoleObserver {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleObserver{writer: writer, prefix: prefix}
}

func (c *ConsoleObserver) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.total = total
	c.done = 0
}

func (c *ConsoleObserver) OnEvent(ev Event) {
	if ev.State != StateDone || ev.Result == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.done++
	fr := ev.Result
	if fr.OK() {
		_, _ = fmt.Fprintf(c.writer, "%s[%d/%d] %s: %s\n", c.prefix, c.done, c.total, fr.Field.Label(), fr.Corrected)
		return
	}
	_, _ = fmt.Fprintf(c.writer, "%s[%d/%d] %s: failed (%s: %s)\n", c.prefix, c.done, c.total, fr.Field.Label(), fr.ErrorKind, fr.Reason)
}

func (c *ConsoleObserver) OnComplete(res *Result) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, _ = fmt.Fprintf(c.writer, "%s%d/%d fields in %v\n", c.prefix, res.Succeeded(), res.Len(), res.Duration().Round(time.Millisecond))
}

func (c *ConsoleObserver) OnError(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, _ = fmt.Fprintf(c.writer, "%sError: %v\n", c.prefix, err)
}

// LogObserver logs transitions using slog. Field states go out at the
// configured level, failures at warn.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver creates a log-based observer.
func NewLogObserver(logger *slog.Logger, level slog.Level) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: level}
}

func (l *LogObserver) OnStart(total int) {
	l.logger.Log(context.Background(), l.level, "Starting extraction", "fields", total)
}

func (l *LogObserver) OnEvent(ev Event) {
	if !ev.State.FieldScoped() {
		l.logger.Log(context.Background(), l.level, "Run state", "state", ev.State)
		return
	}
	if ev.State != StateDone || ev.Result == nil {
		l.logger.Log(context.Background(), l.level, "Field state", "field", ev.Field.String(), "state", ev.State)
		return
	}
	fr := ev.Result
	if fr.OK() {
		l.logger.Log(context.Background(), l.level, "Field done",
			"field", fr.Field.String(), "state", ev.State, "duration", fr.Duration.Round(time.Microsecond))
		return
	}
	l.logger.Warn("Field failed",
		"field", fr.Field.String(), "state", ev.State, "error_kind", fr.ErrorKind,
		"reason", fr.Reason, "duration", fr.Duration.Round(time.Microsecond))
}

func (l *LogObserver) OnComplete(res *Result) {
	l.logger.Log(context.Background(), l.level, "Extraction completed",
		"succeeded", res.Succeeded(), "failed", len(res.Failed()), "elapsed", res.Duration().Round(time.Millisecond))
}

func (l *LogObserver) OnError(err error) {
	l.logger.Error("Extraction failed", "error", err)
}

// FuncObserver forwards events to a function. Other callbacks are ignored.
type FuncObserver func(ev Event)

func (f FuncObserver) OnStart(total int)      {}
func (f FuncObserver) OnEvent(ev Event)       { f(ev) }
func (f FuncObserver) OnComplete(res *Result) {}
func (f FuncObserver) OnError(err error)      {}

// MultiObserver fans out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that reports to every non-nil observer.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, o := range observers {
		m.Add(o)
	}
	return m
}

// Add adds another observer.
func (m *MultiObserver) Add(o Observer) {
	if o != nil {
		m.observers = append(m.observers, o)
	}
}

func (m *MultiObserver) OnStart(total int) {
	for _, o := range m.observers {
		o.OnStart(total)
	}
}

func (m *MultiObserver) OnEvent(ev Event) {
	for _, o := range m.observers {
		o.OnEvent(ev)
	}
}

func (m *MultiObserver) OnComplete(res *Result) {
	for _, o := range m.observers {
		o.OnComplete(res)
	}
}

func (m *MultiObserver) OnError(err error) {
	for _, o := range m.observers {
		o.OnError(err)
	}
}
