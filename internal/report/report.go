// Package report assembles crash and error reports and delivers them to the
// collector. Delivery is fire-and-forget: one POST, no retries, and every
// failure mode is downgraded to a diagnostic line on standard error.
package report

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crashbeacon/crashbeacon/internal/config"
)

// Severity ordinals used on the wire. Smaller is more severe.
const (
	LevelError = 1
	LevelWarn  = 2
	LevelInfo  = 3
	LevelDebug = 4
	LevelTrace = 5
)

// DefaultTimeout for the delivery POST. A slow collector stalls the
// triggering goroutine for at most this long.
const DefaultTimeout = 30 * time.Second

// Event is one captured log record, in wire form. Optional fields marshal as
// null when absent.
type Event struct {
	Timestamp int64   `json:"ts"`
	Level     int     `json:"lvl"`
	Message   string  `json:"msg"`
	Module    *string `json:"mod"`
	File      *string `json:"f"`
	Line      *int    `json:"l"`
}

// Location identifies the source position a report originates from. Column
// is only known for some origins and marshals as null otherwise.
type Location struct {
	File string `json:"f"`
	Line int    `json:"l"`
	Col  *int   `json:"c"`
}

// String renders the location the way report titles embed it.
func (l *Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// payload is the envelope of one delivery.
type payload struct {
	Key  string  `json:"key"`
	Env  *string `json:"env"`
	Name string  `json:"name"`
	Data data    `json:"data"`
}

// data carries the fault context of one report.
type data struct {
	Loc   *Location `json:"loc"`
	Ver   *string   `json:"ver"`
	TID   string    `json:"tid"`
	TName *string   `json:"tname"`
	OS    string    `json:"os"`
	Arch  string    `json:"arch"`
	Trace string    `json:"trace"`
	Log   []Event   `json:"log"`
}

// Reporter performs report assembly and delivery for one client.
type Reporter struct {
	cfg  *config.Config
	http *resty.Client
	diag *slog.Logger
}

// New constructs a Reporter for cfg. A nil diag logger falls back to the
// stderr default.
func New(cfg *config.Config, diag *slog.Logger) *Reporter {
	if diag == nil {
		diag = slog.Default()
	}
	return &Reporter{
		cfg:  cfg,
		http: resty.New().SetTimeout(DefaultTimeout),
		diag: diag,
	}
}

// Send assembles one report from the drained events and posts it to the
// collector. It runs on the triggering goroutine, possibly mid-panic: it
// never returns an error, never retries, and never panics itself. Transport
// errors and non-success statuses become a single diagnostic line.
func (r *Reporter) Send(title string, loc *Location, events []Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.diag.Error("report assembly failed", "panic", fmt.Sprint(rec))
		}
	}()

	if events == nil {
		events = []Event{}
	}

	body := payload{
		Key:  r.cfg.APIKey,
		Env:  optional(r.cfg.Environment),
		Name: title,
		Data: data{
			Loc:   loc,
			Ver:   optional(r.cfg.Version),
			TID:   goroutineID(),
			TName: nil,
			OS:    runtime.GOOS,
			Arch:  runtime.GOARCH,
			Trace: string(debug.Stack()),
			Log:   events,
		},
	}

	url := r.cfg.IngressURL()
	resp, err := r.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		r.diag.Error("sending report failed", "url", url, "error", err)
		return
	}
	if resp.IsError() {
		r.diag.Error("collector rejected report",
			"url", url,
			"status", resp.StatusCode(),
			"response", truncate(string(resp.Body()), 512),
		)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// goroutineID extracts the current goroutine's id from its stack header
// ("goroutine N [running]:"). The runtime exposes no direct accessor.
func goroutineID() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) < 2 {
		return "unknown"
	}
	return fields[1]
}
