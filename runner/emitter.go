package runner

import (
	"context"

	"github.com/threadloop/threadloop/core"
)

// emitter delivers stream events to the turn's consumer. It guarantees the
// terminal-event contract: exactly one complete or error event, after which
// nothing else is sent and the channel closes. If the consumer goes away
// (context cancelled), sends become no-ops.
type emitter struct {
	ctx      context.Context
	ch       chan core.StreamEvent
	terminal bool
}

func newEmitter(ctx context.Context, buffer int) *emitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &emitter{ctx: ctx, ch: make(chan core.StreamEvent, buffer)}
}

func (e *emitter) events() <-chan core.StreamEvent { return e.ch }

// send delivers one event, dropping it if the stream already terminated or
// the consumer's context is done.
func (e *emitter) send(ev core.StreamEvent) {
	if e.terminal {
		return
	}
	if ev.IsTerminal() {
		e.terminal = true
	}

	select {
	case <-e.ctx.Done():
	case e.ch <- ev:
	}
}

func (e *emitter) token(content string) {
	if content != "" {
		e.send(core.NewTokenEvent(content))
	}
}

func (e *emitter) toolStart(call core.ToolCall, origin core.ToolOrigin) {
	e.send(core.NewToolStartEvent(call, origin))
}

func (e *emitter) toolComplete(name, result string, origin core.ToolOrigin) {
	e.send(core.NewToolCompleteEvent(name, result, origin))
}

func (e *emitter) complete() {
	e.send(core.NewCompleteEvent())
}

func (e *emitter) fail(code, message string) {
	e.send(core.NewErrorEvent(code, message))
}

func (e *emitter) close() {
	close(e.ch)
}
