// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/common/errors"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RecoversFromTransientErrors(t *testing.T) {
	c := testClient(3)
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return nil
	}, "complete-job")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentErrors(t *testing.T) {
	c := testClient(3)
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(context.Context) error {
		calls++
		return stderrors.New("rpc error: code = NotFound desc = job 42 not found")
	}, "complete-job")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.ErrCodeWorkflowEngine, errors.CodeOf(err))

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.False(t, stdErr.Retryable)
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	c := testClient(2)
	calls := 0

	err := c.ExecuteWithRetry(context.Background(), func(context.Context) error {
		calls++
		return stderrors.New("context deadline exceeded")
	}, "topology")

	assert.Equal(t, 3, calls)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
}

func TestExecuteWithRetry_HonoursCancellation(t *testing.T) {
	c := testClient(5)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ExecuteWithRetry(ctx, func(context.Context) error {
		return stderrors.New("unavailable")
	}, "topology")
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp: connection refused", true},
		{"rpc error: code = DeadlineExceeded desc = deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = InvalidArgument desc = bad variables", false},
		{"permission denied", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.msg)))
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cc.RequestTimeout)
	assert.True(t, cc.UsePlaintextConnection)

	cc = ConfigFrom(config.CamundaConfig{})
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)
}

func TestRegistry_SkipsDisabledWorkers(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))

	started := r.Register("diagnose-symptoms", config.WorkerConfig{Enabled: false}, nil)
	assert.False(t, started)
	assert.Empty(t, r.TaskTypes())
	r.Close()
}
