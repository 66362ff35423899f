package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProvider(t *testing.T) {
	t.Run("should drop spans without an endpoint", func(t *testing.T) {
		p, err := NewProvider(context.Background(), "", zap.NewNop())
		require.NoError(t, err)

		_, span := p.Tracer().Start(context.Background(), "scan")
		span.End()
		assert.False(t, span.SpanContext().IsValid())
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("should record spans with an endpoint", func(t *testing.T) {
		p, err := NewProvider(context.Background(), "localhost:4317", zap.NewNop())
		require.NoError(t, err)

		_, span := p.Tracer().Start(context.Background(), "scan")
		assert.True(t, span.SpanContext().IsValid())
		span.End()
	})
}
