package crashbeacon

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/crashbeacon/crashbeacon/internal/report"
)

// PanicInfo describes one recovered panic as seen by the handler chain.
type PanicInfo struct {
	// Value is the recovered panic payload.
	Value any
	// File and Line locate the panic site. File is empty when the origin
	// could not be resolved.
	File string
	Line int
	// Stack is the formatted stack trace of the panicking goroutine.
	Stack []byte
}

// PanicHandler observes a recovered panic. Handlers run in order on the
// panicking goroutine; a handler cannot stop the chain, and after the last
// one the panic is rethrown so default crash behavior is preserved.
type PanicHandler func(*PanicInfo)

// Recover intercepts a panic on the current goroutine and runs the panic
// handler chain. Install it with defer at the top of main and of every
// goroutine that should be observed:
//
//	defer client.Recover()
//
// The client's capture handler runs first and, when the client is enabled
// and the payload is string-like, assembles and sends one report. The
// original panic is always rethrown afterwards; Recover never swallows it.
func (c *Client) Recover() {
	r := recover()
	if r == nil {
		return
	}

	info := &PanicInfo{
		Value: r,
		Stack: debug.Stack(),
	}
	if file, line, ok := panicOrigin(); ok {
		info.File = file
		info.Line = line
	}

	c.mu.Lock()
	handlers := make([]PanicHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		c.runHandler(h, info)
	}

	panic(r)
}

// OnPanic adds a handler to the chain, after the client's capture handler
// and before the terminal rethrow. There is no way to remove a handler.
func (c *Client) OnPanic(h PanicHandler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// runHandler shields the chain from a misbehaving handler: every handler
// runs, and the rethrow happens, no matter what an earlier handler did.
func (c *Client) runHandler(h PanicHandler, info *PanicInfo) {
	defer func() {
		if r := recover(); r != nil {
			c.diag.Error("panic handler failed", "panic", fmt.Sprint(r))
		}
	}()
	h(info)
}

// capturePanic is the client's own handler: gate on the enabled flag,
// extract a title, and send one report draining the hook's cursor.
func (c *Client) capturePanic(info *PanicInfo) {
	if !c.cfg.Enabled() {
		return
	}

	msg, ok := panicMessage(info.Value)
	if !ok {
		// Opaque payload: skip reporting, let the chain fall through to
		// the default crash diagnostics.
		return
	}

	title := msg
	var loc *report.Location
	if info.File != "" {
		loc = &report.Location{File: info.File, Line: info.Line}
		title = fmt.Sprintf("%s in %s", msg, loc)
	}

	c.reporter.Send(title, loc, c.panicCursor.Drain())
}

// panicMessage extracts a displayable title from a panic payload. Strings,
// errors, and Stringers are string-like; anything else is opaque and
// produces no report.
func panicMessage(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case error:
		return v.Error(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}

// panicOrigin resolves the source position of the panic site: the first
// non-runtime frame above runtime.gopanic (or runtime.sigpanic for faults
// like nil dereferences). It only works while unwinding, i.e. when called
// from a deferred function on the panicking goroutine.
func panicOrigin() (string, int, bool) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	seenPanic := false
	for {
		frame, more := frames.Next()
		switch {
		case frame.Function == "runtime.gopanic" || frame.Function == "runtime.sigpanic":
			seenPanic = true
		case seenPanic && !strings.HasPrefix(frame.Function, "runtime."):
			return frame.File, frame.Line, true
		}
		if !more {
			return "", 0, false
		}
	}
}
