package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_DisabledWithoutEndpoint(t *testing.T) {
	p, err := NewProvider(context.Background(), Options{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	_, span := p.Tracer().Start(context.Background(), "relay")
	assert.False(t, span.SpanContext().IsValid(), "disabled provider should hand out no-op spans")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_NilIsDisabled(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Enabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Options{Endpoint: "127.0.0.1:4318", ServiceName: "test", Insecure: true})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "relay")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
