package crashbeacon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashbeacon/crashbeacon/internal/report"
)

// recordingHandler is a downstream double that remembers every record it
// received.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func TestSlogHandlerPassesEverythingThrough(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.SetEnabled(false) // pass-through must not depend on the gate

	downstream := &recordingHandler{}
	logger := slog.New(client.SlogHandler(downstream))

	logger.Info("hello")
	logger.Error("broken")

	assert.Equal(t, 2, downstream.count())
}

func TestSlogHandlerErrorTriggersReport(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.Info("step one")
	logger.Debug("step two")
	logger.Error("exploded", "attempt", 2)

	require.Equal(t, 1, log.count())
	payload := log.last()
	assert.Equal(t, "exploded attempt=2", payload["name"])

	data := payload["data"].(map[string]any)
	loc, ok := data["loc"].(map[string]any)
	require.True(t, ok, "slog records resolve a source location")
	assert.Contains(t, loc["f"], "sloghandler_test.go")
	assert.Greater(t, loc["l"], float64(0))
	assert.Nil(t, loc["c"])

	events := reportEvents(t, payload)
	require.Len(t, events, 3)
	assert.Equal(t, "step one", events[0]["msg"])
	assert.Equal(t, float64(report.LevelInfo), events[0]["lvl"])
	assert.Equal(t, "step two", events[1]["msg"])
	assert.Equal(t, float64(report.LevelDebug), events[1]["lvl"])
	assert.Equal(t, "exploded attempt=2", events[2]["msg"])
	assert.Equal(t, float64(report.LevelError), events[2]["lvl"])

	errEvent := events[2]
	assert.Contains(t, errEvent["mod"], "crashbeacon")
	assert.Contains(t, errEvent["f"], "sloghandler_test.go")
	assert.Greater(t, errEvent["l"], float64(0))
}

func TestSlogHandlerNonErrorNeverReports(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.Debug("routine")
	logger.Info("routine")
	logger.Warn("routine")

	assert.Zero(t, log.count())
}

func TestSlogHandlerToggleOffStillBuffers(t *testing.T) {
	client, log := newTestClient(t, func(b *Builder) *Builder {
		return b.ReportOnLogErrors(false)
	})

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.Error("not reported")

	assert.Zero(t, log.count())

	buffered := client.panicCursor.Drain()
	require.Len(t, buffered, 1)
	assert.Equal(t, "not reported", buffered[0].Message)
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.With("req", "42").Error("failed")

	require.Equal(t, 1, log.count())
	assert.Equal(t, "failed req=42", log.last()["name"])
}

func TestSlogHandlerWithGroup(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.WithGroup("http").With("status", 500).Error("failed")

	require.Equal(t, 1, log.count())
	assert.Equal(t, "failed http.status=500", log.last()["name"])
}

func TestSlogHandlerFallbackMessage(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	logger.Error("")

	require.Equal(t, 1, log.count())
	name := log.last()["name"].(string)
	assert.True(t, strings.HasPrefix(name, "ERROR in "), "title %q", name)
	assert.Contains(t, name, "crashbeacon")
}

func TestTwoAdaptersShareTheBufferIndependently(t *testing.T) {
	client, log := newTestClient(t, nil)

	logger := slog.New(client.SlogHandler(&recordingHandler{}))
	gripSender := client.WrapSender(send.NewMockSender("downstream"))

	logger.Info("from slog")
	gripSender.Send(message.NewDefaultMessage(level.Info, "from grip"))

	// The grip adapter's report sees every event pushed since its
	// attachment, including the slog one.
	gripSender.Send(message.NewDefaultMessage(level.Error, "grip error"))
	require.Equal(t, 1, log.count())
	first := reportEvents(t, log.last())
	require.Len(t, first, 3)
	assert.Equal(t, "from slog", first[0]["msg"])
	assert.Equal(t, "from grip", first[1]["msg"])
	assert.Equal(t, "grip error", first[2]["msg"])

	// The slog adapter drains its own cursor: the earlier report did not
	// consume its view of the stream.
	logger.Error("slog error")
	require.Equal(t, 2, log.count())
	second := reportEvents(t, log.last())
	require.Len(t, second, 4)
	assert.Equal(t, "from slog", second[0]["msg"])
	assert.Equal(t, "from grip", second[1]["msg"])
	assert.Equal(t, "grip error", second[2]["msg"])
	assert.Equal(t, "slog error", second[3]["msg"])
}

func TestOrdinalFromSlogLevel(t *testing.T) {
	cases := []struct {
		level slog.Level
		want  int
	}{
		{slog.LevelError + 4, report.LevelError},
		{slog.LevelError, report.LevelError},
		{slog.LevelWarn, report.LevelWarn},
		{slog.LevelInfo, report.LevelInfo},
		{slog.LevelDebug, report.LevelDebug},
		{slog.LevelDebug - 4, report.LevelTrace},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ordinalFromSlogLevel(tc.level), "level %s", tc.level)
	}
}
