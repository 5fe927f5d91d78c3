// Package servicetest builds a diagnosis service over the bundled
// knowledge base for tests of the outer surfaces.
package servicetest

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
	"diagnosis-workers/internal/diagnosis/service"
	"diagnosis-workers/internal/diagnosis/session"
)

// KnowledgeBasePath locates data/knowledge_base.json from this source file.
func KnowledgeBasePath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "data", "knowledge_base.json")
}

// Engine loads the bundled catalog with default scoring.
func Engine(t testing.TB) *engine.Engine {
	t.Helper()
	kb, err := knowledgebase.FileSource{Path: KnowledgeBasePath()}.Load(context.Background())
	require.NoError(t, err)
	e, err := engine.New(kb, engine.DefaultConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	return e
}

// New returns a ready service. With sessions it is backed by a miniredis
// instance, which is returned so tests can inspect or stop it.
func New(t testing.TB, withSessions bool) (*service.Service, *miniredis.Miniredis) {
	t.Helper()
	opts := service.Options{
		Provider: engine.NewReadyProvider(Engine(t)),
		Logger:   logger.NewTestLogger(t),
	}
	var mr *miniredis.Miniredis
	if withSessions {
		mr = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		opts.Sessions = session.NewStore(client, time.Minute, "test:")
	}
	return service.New(opts), mr
}
