package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitializeWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Initialize(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "graphql.GetAssetTypes", attribute.String("transport", "https"))
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, Tracer())
}
