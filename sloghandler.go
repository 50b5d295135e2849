package crashbeacon

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/crashbeacon/crashbeacon/internal/config"
	"github.com/crashbeacon/crashbeacon/internal/report"
	"github.com/crashbeacon/crashbeacon/internal/ring"
)

// captureHandler bridges log/slog into the recent-event buffer. Records are
// always forwarded to the downstream handler first; error-level records
// additionally trigger a report.
type captureHandler struct {
	next     slog.Handler
	cfg      *config.Config
	buf      *ring.Buffer[report.Event]
	cursor   *ring.Cursor[report.Event]
	reporter *report.Reporter

	// attrs are the handler-bound attributes accumulated via WithAttrs,
	// pre-rendered for message assembly. groups qualifies keys added after
	// WithGroup calls.
	attrs  []string
	groups []string
}

// SlogHandler returns a slog.Handler that forwards every record to next and
// records it into the client's recent-event buffer. Error-level records
// trigger a synchronous report while the client is enabled and the
// report-on-log-errors toggle is on; the logging goroutine is blocked for
// the duration of the HTTP POST.
//
// Install it as the application handler:
//
//	slog.SetDefault(slog.New(client.SlogHandler(slog.NewTextHandler(os.Stdout, nil))))
//
// Handlers derived with WithAttrs or WithGroup keep feeding the same buffer
// and report cursor.
func (c *Client) SlogHandler(next slog.Handler) slog.Handler {
	return &captureHandler{
		next:     next,
		cfg:      c.cfg,
		buf:      c.buf,
		cursor:   c.buf.Cursor(),
		reporter: c.reporter,
	}
}

func (h *captureHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h *captureHandler) Handle(ctx context.Context, rec slog.Record) error {
	err := h.next.Handle(ctx, rec)

	ev, loc := h.eventFrom(rec)
	h.buf.Push(ev)

	if rec.Level >= slog.LevelError && h.cfg.ReportOnLogErrors && h.cfg.Enabled() {
		h.reporter.Send(ev.Message, loc, h.cursor.Drain())
	}

	return err
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(clone.attrs[:len(clone.attrs):len(clone.attrs)], renderAttrs(h.groups, attrs)...)
	return &clone
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(clone.groups[:len(clone.groups):len(clone.groups)], name)
	return &clone
}

// eventFrom converts one record into its wire event, resolving the source
// position from the record's PC. The returned location is nil when the
// record carries no usable caller information.
func (h *captureHandler) eventFrom(rec slog.Record) (report.Event, *report.Location) {
	ev := report.Event{
		Timestamp: rec.Time.Unix(),
		Level:     ordinalFromSlogLevel(rec.Level),
	}
	if rec.Time.IsZero() {
		ev.Timestamp = time.Now().Unix()
	}

	var loc *report.Location
	var module string
	if rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			file := frame.File
			line := frame.Line
			ev.File = &file
			ev.Line = &line
			loc = &report.Location{File: file, Line: line}
		}
		if frame.Function != "" {
			module = funcPackage(frame.Function)
			ev.Module = &module
		}
	}

	parts := make([]string, 0, 1+len(h.attrs)+rec.NumAttrs())
	if rec.Message != "" {
		parts = append(parts, rec.Message)
	}
	parts = append(parts, h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		parts = append(parts, renderAttrs(h.groups, []slog.Attr{a})...)
		return true
	})

	if len(parts) == 0 {
		// Nothing was recorded on the event itself; synthesize a title
		// from its metadata.
		target := module
		if target == "" {
			target = "unknown"
		}
		ev.Message = fmt.Sprintf("%s in %s", rec.Level, target)
	} else {
		ev.Message = strings.Join(parts, " ")
	}

	return ev, loc
}

// renderAttrs flattens attributes into "key=value" strings, qualifying keys
// with the active group path.
func renderAttrs(groups []string, attrs []slog.Attr) []string {
	prefix := ""
	if len(groups) > 0 {
		prefix = strings.Join(groups, ".") + "."
	}

	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			out = append(out, renderAttrs(append(groups, a.Key), a.Value.Group())...)
			continue
		}
		if a.Equal(slog.Attr{}) {
			continue
		}
		out = append(out, fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value))
	}
	return out
}

// funcPackage reduces a fully qualified function name
// ("host/org/repo/pkg.Func") to its package import path.
func funcPackage(fn string) string {
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}

// ordinalFromSlogLevel maps slog levels onto the wire's five-step severity
// scale. Levels below debug count as trace.
func ordinalFromSlogLevel(lvl slog.Level) int {
	switch {
	case lvl >= slog.LevelError:
		return report.LevelError
	case lvl >= slog.LevelWarn:
		return report.LevelWarn
	case lvl >= slog.LevelInfo:
		return report.LevelInfo
	case lvl >= slog.LevelDebug:
		return report.LevelDebug
	default:
		return report.LevelTrace
	}
}
