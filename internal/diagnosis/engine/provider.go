// internal/diagnosis/engine/provider.go
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "diagnosis-workers/internal/common/errors"
)

// Provider hands out the engine once startup has built it. Callers arriving
// earlier get a not-ready error, or block in Wait.
type Provider struct {
	once   sync.Once
	ready  chan struct{}
	engine atomic.Pointer[Engine]
	err    error
}

func NewProvider() *Provider {
	return &Provider{ready: make(chan struct{})}
}

// NewReadyProvider wraps an already built engine.
func NewReadyProvider(e *Engine) *Provider {
	p := NewProvider()
	_ = p.Init(func() (*Engine, error) { return e, nil })
	return p
}

// Init runs build exactly once. Later calls return the first outcome.
func (p *Provider) Init(build func() (*Engine, error)) error {
	p.once.Do(func() {
		defer close(p.ready)
		e, err := build()
		if err != nil {
			p.err = err
			return
		}
		p.engine.Store(e)
	})
	<-p.ready
	return p.err
}

// Engine returns the engine, or ENGINE_NOT_READY while it is being built or
// after the build failed.
func (p *Provider) Engine() (*Engine, error) {
	if e := p.engine.Load(); e != nil {
		return e, nil
	}
	return nil, apperrors.NewNotReadyError()
}

// Ready reports whether the engine can serve requests.
func (p *Provider) Ready() bool {
	return p.engine.Load() != nil
}

// Wait blocks until the build finishes or ctx is done.
func (p *Provider) Wait(ctx context.Context) (*Engine, error) {
	select {
	case <-p.ready:
		if p.err != nil {
			return nil, p.err
		}
		return p.Engine()
	case <-ctx.Done():
		return nil, apperrors.NewNotReadyError()
	}
}
