package breaker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusai/querycore/internal/telemetrylog"
	"github.com/nimbusai/querycore/pkg/breaker"
)

func TestCallPassesThroughSuccess(t *testing.T) {
	b := breaker.New("cloud-inference", telemetrylog.New())

	result, err := b.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestCallOpensAfterConsecutiveFailures(t *testing.T) {
	b := breaker.New("cloud-inference", telemetrylog.New())
	failing := errors.New("upstream unavailable")

	for i := 0; i < 5; i++ {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, failing
		})
	}

	_, err := b.Call(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "should not run", nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
}
