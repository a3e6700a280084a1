package testutil

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/MeKo-Tech/bankocr/internal/engine"
)

// Reply is one scripted engine answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedEngine answers Recognize calls from a queue, in call order, and
// records every hint and image it was given.
type ScriptedEngine struct {
	mu      sync.Mutex
	replies []Reply
	Hints   []engine.Hint
	Sizes   []image.Point
	Images  []image.Image
}

// NewScriptedEngine returns an engine that answers with texts in order.
func NewScriptedEngine(texts ...string) *ScriptedEngine {
	e := &ScriptedEngine{}
	for _, t := range texts {
		e.replies = append(e.replies, Reply{Text: t})
	}
	return e
}

// Push appends replies to the queue.
func (e *ScriptedEngine) Push(r ...Reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, r...)
}

// Calls returns the number of Recognize calls so far.
func (e *ScriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Hints)
}

func (e *ScriptedEngine) Recognize(ctx context.Context, img image.Image, hint engine.Hint) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Hints = append(e.Hints, hint)
	e.Sizes = append(e.Sizes, img.Bounds().Size())
	e.Images = append(e.Images, img)
	if len(e.replies) == 0 {
		return "", errors.New("scripted engine has no reply left")
	}
	r := e.replies[0]
	e.replies = e.replies[1:]
	return r.Text, r.Err
}

var _ engine.Engine = (*ScriptedEngine)(nil)
