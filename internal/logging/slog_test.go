package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "session").Info(context.Background(), "restored", "user_id", "u1")

	out := buf.String()
	assert.Contains(t, out, "component=session")
	assert.Contains(t, out, "user_id=u1")
}

func TestSlogLogger_TraceIDs(t *testing.T) {
	log, buf := newTestLogger(t)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.With("component", "session").Info(ctx, "signed in")
	log.Info(context.Background(), "no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Contains(t, lines[0], "span_id=00f067aa0ba902b7")
	assert.Contains(t, lines[0], "component=session")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestComponent(t *testing.T) {
	log, buf := newTestLogger(t)
	Component(log, "profile_sync").Warn(context.Background(), "fetch failed")
	assert.Contains(t, buf.String(), "component=profile_sync")

	assert.Equal(t, Nop{}, Component(nil, "x"))
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{BackendSlog, BackendZap, BackendZerolog} {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(backend, "warn", &buf)
			require.NoError(t, err)

			log = log.With("component", "test")
			log.Info(context.Background(), "hidden")
			log.Warn(context.Background(), "shown", "key", "value")

			out := buf.String()
			assert.NotContains(t, out, "hidden")
			assert.Contains(t, out, "shown")
			assert.Contains(t, out, "value")
			assert.Contains(t, out, "component")
			assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
		})
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("logrus", "info", &bytes.Buffer{})
	require.Error(t, err)
	_, err = New(BackendSlog, "loud", &bytes.Buffer{})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)
}

func TestNop(t *testing.T) {
	var l Logger = Nop{}
	l.With("a", 1).Error(context.Background(), "ignored")
}
