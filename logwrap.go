package crashbeacon

import (
	"time"

	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"

	"github.com/crashbeacon/crashbeacon/internal/config"
	"github.com/crashbeacon/crashbeacon/internal/report"
	"github.com/crashbeacon/crashbeacon/internal/ring"
)

// captureSender wraps a grip sender: every message is forwarded downstream
// untouched, recorded into the recent-event buffer, and error-level messages
// additionally trigger a report.
type captureSender struct {
	send.Sender

	cfg      *config.Config
	buf      *ring.Buffer[report.Event]
	cursor   *ring.Cursor[report.Event]
	reporter *report.Reporter
}

// WrapSender returns a send.Sender that forwards everything to next and
// records each loggable message into the client's recent-event buffer. When
// an error-level message arrives while the client is enabled and the
// report-on-log-errors toggle is on, the wrapper synchronously assembles and
// sends a report on the calling goroutine; the caller is blocked for the
// duration of the HTTP POST.
//
// Install the result as the application's sender, for example with
// grip.SetSender. Capture never suppresses normal logging: the wrapped
// sender always receives the original message first.
func (c *Client) WrapSender(next send.Sender) send.Sender {
	return &captureSender{
		Sender:   next,
		cfg:      c.cfg,
		buf:      c.buf,
		cursor:   c.buf.Cursor(),
		reporter: c.reporter,
	}
}

func (s *captureSender) Send(m message.Composer) {
	s.Sender.Send(m)

	if !m.Loggable() {
		return
	}

	msg := m.String()
	s.buf.Push(report.Event{
		Timestamp: time.Now().Unix(),
		Level:     ordinalFromPriority(m.Priority()),
		Message:   msg,
	})

	if m.Priority() < level.Error {
		return
	}
	if !s.cfg.ReportOnLogErrors || !s.cfg.Enabled() {
		return
	}

	// grip composers carry no caller information, so this path reports
	// without a source location.
	s.reporter.Send(msg, nil, s.cursor.Drain())
}

// ordinalFromPriority maps grip's syslog-style priorities onto the wire's
// five-step severity scale.
func ordinalFromPriority(p level.Priority) int {
	switch {
	case p >= level.Error:
		return report.LevelError
	case p >= level.Warning:
		return report.LevelWarn
	case p >= level.Info:
		return report.LevelInfo
	case p >= level.Debug:
		return report.LevelDebug
	default:
		return report.LevelTrace
	}
}
