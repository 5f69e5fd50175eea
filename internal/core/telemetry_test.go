// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
)

func TestNewTelemetry_Disabled(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OtelConfig{}, config.AppConfig{})
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))

	var nilTel *Telemetry
	assert.NoError(t, nilTel.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	dev := sampler(config.OtelConfig{SampleRate: 0.01}, config.AppConfig{Environment: "development"})
	assert.Equal(t, sdktrace.AlwaysSample().Description(), dev.Description())

	prod := sampler(config.OtelConfig{SampleRate: 5}, config.AppConfig{Environment: "production"})
	assert.Contains(t, prod.Description(), "TraceIDRatioBased{0.1}")
}

func TestSpanHelpers(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	ctx, span := tp.Tracer("test").Start(context.Background(), "auth.Login")
	AddSpanEvent(ctx, "token.registered", attribute.String("user.id", "u1"))
	SetSpanError(ctx, errors.New("store down"))
	traceID := TraceIDFromContext(ctx)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, ended[0].SpanContext().TraceID().String(), traceID)
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	var names []string
	for _, ev := range ended[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "token.registered")
	assert.Contains(t, names, "exception")
}
