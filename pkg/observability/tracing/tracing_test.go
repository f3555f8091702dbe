package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(false)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx := context.Background()
	got, end := StartSpan(ctx, "probe.gossip")
	end()
	assert.Equal(t, ctx, got)
	Fail(got, errors.New("ignored"))
}

func TestSpansAreExported(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupWriter(true, &buf)
	require.NoError(t, err)

	ctx, end := StartSpan(context.Background(), "probe.gossip", attribute.String("es.address", "10.0.0.5"))
	Fail(ctx, errors.New("connection refused"))
	end()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "probe.gossip")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "connection refused")
}
