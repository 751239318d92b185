package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_DisabledWithoutHost(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tp, shutdown, err := InitTracing(log, Config{ServiceName: "cartsync"})
	require.NoError(t, err)
	require.NotNil(t, tp)

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.Empty(t, TraceID(ctx), "no-op spans carry no trace id")
	assert.NoError(t, shutdown(context.Background()))
}

func TestTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	assert.Empty(t, TraceID(context.Background()))

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceID(ctx), 32)
}
