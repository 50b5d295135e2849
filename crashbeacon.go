// Package crashbeacon embeds a crash- and error-telemetry pipeline inside a
// host application. A built Client keeps the most recent log events in a
// bounded lossy buffer, intercepts panics on goroutines guarded with
// Client.Recover, and delivers structured reports to a remote collector over
// HTTP. Delivery is fire-and-forget: best effort, single attempt, and no
// failure ever propagates back into the host application.
//
// Minimal usage:
//
//	client, err := crashbeacon.NewBuilder(apiKey).
//		Environment("production").
//		Version("1.4.2").
//		BackendURL("https://crashes.example.com").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer client.Recover()
//
// Log capture is opt-in through the two adapters: WrapSender for grip-style
// leveled loggers and SlogHandler for log/slog.
package crashbeacon

import (
	"log/slog"
	"sync"

	"github.com/crashbeacon/crashbeacon/internal/config"
	"github.com/crashbeacon/crashbeacon/internal/diag"
	"github.com/crashbeacon/crashbeacon/internal/report"
	"github.com/crashbeacon/crashbeacon/internal/ring"
)

// ErrEmptyAPIKey is returned by Build when no API key was provided.
var ErrEmptyAPIKey = config.ErrEmptyAPIKey

// bufferCapacity is the fixed size of the recent-event buffer. Events beyond
// it silently evict the oldest.
const bufferCapacity = 100

// Builder configures a Client. Obtain one with NewBuilder or FromEnv, chain
// the setters, then call Build.
type Builder struct {
	cfg *config.Config
}

// NewBuilder starts a Builder for the given project API key. Leading and
// trailing whitespace in the key is ignored.
func NewBuilder(apiKey string) *Builder {
	return &Builder{cfg: config.New(apiKey)}
}

// FromEnv starts a Builder pre-populated from CRASHBEACON_* environment
// variables and the optional YAML file named by CRASHBEACON_CONFIG_FILE.
func FromEnv() (*Builder, error) {
	cfg, err := config.Loader{}.Load()
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

// Environment sets the reported environment tag. Useful for separating
// development and staging reports from production ones.
func (b *Builder) Environment(name string) *Builder {
	b.cfg.Environment = name
	return b
}

// Version sets the reported application version tag. Use this to track when
// a fault first occurred and when it is resolved.
func (b *Builder) Version(version string) *Builder {
	b.cfg.Version = version
	return b
}

// BackendURL points the client at a collector. The value is the base URL
// including the protocol, without a trailing slash; reports are posted to
// its /ingress endpoint.
func (b *Builder) BackendURL(url string) *Builder {
	b.cfg.BackendURL = url
	return b
}

// ReportOnLogErrors controls whether error-level log events captured by the
// adapters trigger a report of their own, outside any panic. On by default.
func (b *Builder) ReportOnLogErrors(enabled bool) *Builder {
	b.cfg.ReportOnLogErrors = enabled
	return b
}

// Build validates the configuration and assembles the Client: the recent
// event buffer, the reporter, and the panic handler chain. Panics that occur
// before Build are unobserved.
func (b *Builder) Build() (*Client, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	buf := ring.New[report.Event](bufferCapacity)
	logger := diag.Default()

	c := &Client{
		cfg:      b.cfg,
		buf:      buf,
		reporter: report.New(b.cfg, logger),
		diag:     logger,
	}
	c.panicCursor = buf.Cursor()
	c.handlers = []PanicHandler{c.capturePanic}

	return c, nil
}

// Client is the installed telemetry pipeline. All methods are safe for
// concurrent use.
type Client struct {
	cfg         *config.Config
	buf         *ring.Buffer[report.Event]
	reporter    *report.Reporter
	panicCursor *ring.Cursor[report.Event]
	diag        *slog.Logger

	mu       sync.Mutex
	handlers []PanicHandler
}

// SetEnabled flips reporting on or off at any time, from any goroutine.
// While disabled, panics and error-level events produce no reports; event
// buffering continues regardless.
func (c *Client) SetEnabled(enabled bool) {
	c.cfg.SetEnabled(enabled)
}

// Enabled reports whether the client currently delivers reports.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled()
}
