// Package collector provides an in-process stand-in for a real collector
// backend. It accepts the same POST /ingress payloads the reporter emits,
// logs a summary of each, and keeps the decoded reports for inspection. It
// exists for local development and integration tests; it is not a durable
// ingestion service.
package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/crashbeacon/crashbeacon/internal/report"
)

// Report is one decoded ingress payload.
type Report struct {
	Key  string     `json:"key"`
	Env  *string    `json:"env"`
	Name string     `json:"name"`
	Data ReportData `json:"data"`
}

// ReportData is the fault context of one decoded report.
type ReportData struct {
	Loc   *report.Location `json:"loc"`
	Ver   *string          `json:"ver"`
	TID   string           `json:"tid"`
	TName *string          `json:"tname"`
	OS    string           `json:"os"`
	Arch  string           `json:"arch"`
	Trace string           `json:"trace"`
	Log   []report.Event   `json:"log"`
}

// Stub is the in-process collector. Start it with Serve and point a client's
// backend URL at URL().
type Stub struct {
	log *slog.Logger
	lis net.Listener
	srv *http.Server

	mu      sync.Mutex
	reports []Report
}

// New binds a Stub to addr (use "127.0.0.1:0" for an ephemeral port).
func New(addr string, logger *slog.Logger) (*Stub, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "collector: binding listener")
	}

	s := &Stub{
		log: logger.With("component", "collector"),
		lis: lis,
	}

	r := chi.NewRouter()
	r.Post("/ingress", s.handleIngress)
	s.srv = &http.Server{Handler: r}

	return s, nil
}

// URL returns the base URL clients should use as their backend URL.
func (s *Stub) URL() string {
	return "http://" + s.lis.Addr().String()
}

// Serve blocks serving requests until Close is called.
func (s *Stub) Serve() error {
	err := s.srv.Serve(s.lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "collector: serving")
}

// Close stops the listener. Safe to call more than once.
func (s *Stub) Close() error {
	return s.srv.Close()
}

// Reports returns a copy of everything received so far.
func (s *Stub) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Report, len(s.reports))
	copy(out, s.reports)
	return out
}

func (s *Stub) handleIngress(w http.ResponseWriter, r *http.Request) {
	var rep Report
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		s.log.Warn("rejecting malformed report", "error", err)
		http.Error(w, "malformed report", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.reports = append(s.reports, rep)
	total := len(s.reports)
	s.mu.Unlock()

	s.log.Info("report received",
		"name", rep.Name,
		"env", stringOr(rep.Env, "-"),
		"ver", stringOr(rep.Data.Ver, "-"),
		"os", rep.Data.OS,
		"arch", rep.Data.Arch,
		"events", summarizeLevels(rep.Data.Log),
		"total", total,
	)

	w.WriteHeader(http.StatusAccepted)
}

// summarizeLevels renders the attached log as "n (levelxcount ...)".
func summarizeLevels(events []report.Event) string {
	if len(events) == 0 {
		return "0"
	}

	counts := lo.CountValuesBy(events, func(e report.Event) string {
		return levelName(e.Level)
	})
	names := lo.Keys(counts)
	sort.Strings(names)

	parts := lo.Map(names, func(name string, _ int) string {
		return fmt.Sprintf("%sx%d", name, counts[name])
	})
	return fmt.Sprintf("%d (%s)", len(events), strings.Join(parts, " "))
}

func levelName(ordinal int) string {
	switch ordinal {
	case report.LevelError:
		return "error"
	case report.LevelWarn:
		return "warn"
	case report.LevelInfo:
		return "info"
	case report.LevelDebug:
		return "debug"
	case report.LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
