// internal/diagnosis/engine/provider_test.go
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "diagnosis-workers/internal/common/errors"
)

func TestProvider_NotReadyBeforeInit(t *testing.T) {
	p := NewProvider()

	e, err := p.Engine()
	assert.Nil(t, e)
	assert.Equal(t, apperrors.ErrCodeNotReady, apperrors.CodeOf(err))
	assert.False(t, p.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.Equal(t, apperrors.ErrCodeNotReady, apperrors.CodeOf(err))
}

func TestProvider_BuildsExactlyOnce(t *testing.T) {
	p := NewProvider()
	built := newTestEngine(t, nil)
	var calls int32

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Init(func() (*Engine, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return built, nil
			})
		}()
	}

	waited := make(chan *Engine, 1)
	go func() {
		e, _ := p.Wait(context.Background())
		waited <- e
	}()

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, p.Ready())
	assert.Same(t, built, <-waited)

	e, err := p.Engine()
	require.NoError(t, err)
	assert.Same(t, built, e)
}

func TestProvider_FailedBuildNeverServes(t *testing.T) {
	p := NewProvider()
	boom := errors.New("kb unreadable")

	err := p.Init(func() (*Engine, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = p.Engine()
	assert.Equal(t, apperrors.ErrCodeNotReady, apperrors.CodeOf(err))
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	// a second Init does not retry
	err = p.Init(func() (*Engine, error) { return newTestEngine(t, nil), nil })
	assert.ErrorIs(t, err, boom)
	assert.False(t, p.Ready())
}

func TestNewReadyProvider(t *testing.T) {
	e := newTestEngine(t, nil)
	p := NewReadyProvider(e)

	got, err := p.Engine()
	require.NoError(t, err)
	assert.Same(t, e, got)
}
