package pipeline

import "github.com/MeKo-Tech/bankocr/internal/recognizer"

// State is a step of a run. Field-scoped states repeat once per field.
type State string

const (
	StateIdle          State = "idle"
	StateWindowLocated State = "window_located"
	StateCapturing     State = State(recognizer.StageCapturing)
	StatePreprocessing State = State(recognizer.StagePreprocessing)
	StateRecognizing   State = State(recognizer.StageRecognizing)
	StateCorrecting    State = "correcting"
	StateDone          State = "done"
	StateAggregated    State = "aggregated"
	StateReported      State = "reported"
)

// FieldScoped reports whether s belongs to a single field rather than the run.
func (s State) FieldScoped() bool {
	switch s {
	case StateCapturing, StatePreprocessing, StateRecognizing, StateCorrecting, StateDone:
		return true
	}
	return false
}
