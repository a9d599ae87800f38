package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"

	"messaging-service/internal/config"
)

func TestSetupOTelDisabledIsNoop(t *testing.T) {
	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupOTelExporterError(t *testing.T) {
	orig := newOTLPExporter
	t.Cleanup(func() { newOTLPExporter = orig })
	newOTLPExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, assert.AnError
	}

	_, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: true, Endpoint: "localhost:4317", Insecure: true, ServiceName: "svc", SampleRatio: 1}, "test")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHeadersFromContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")

	headers := HeadersFromContext(ctx)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, headers)
	assert.Empty(t, HeadersFromContext(context.Background()))
}
