// Package oracle asks a vision model whether a chat screenshot needs a reply.
package oracle

import (
	"context"

	"github.com/1broseidon/replybot/internal/frame"
)

// Oracle reads a frame and proposes a reply.
//
// Implementations return a Decision with ShouldReply false alongside any
// error, so callers that ignore the error still do nothing.
type Oracle interface {
	Analyze(ctx context.Context, f *frame.Frame) (Decision, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, f *frame.Frame) (Decision, error)

func (fn Func) Analyze(ctx context.Context, f *frame.Frame) (Decision, error) {
	return fn(ctx, f)
}
