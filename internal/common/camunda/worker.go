// internal/common/camunda/worker.go
package camunda

import (
	"sort"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"diagnosis-workers/internal/common/config"
)

// JobHandler is implemented by every task handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Registry opens job workers on a Zeebe client and closes them together.
type Registry struct {
	client zbc.Client
	logger *zap.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewRegistry(client zbc.Client, logger *zap.Logger) *Registry {
	return &Registry{
		client:  client,
		logger:  logger,
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a worker for taskType unless it is disabled. It reports
// whether a worker was started.
func (r *Registry) Register(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", zap.String("taskType", taskType))
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[taskType]; exists {
		r.logger.Warn("worker already registered", zap.String("taskType", taskType))
		return false
	}

	r.workers[taskType] = r.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	r.logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return true
}

// TaskTypes lists the registered task types in order.
func (r *Registry) TaskTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.workers))
	for t := range r.workers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Close stops polling and waits for in-flight jobs.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskType, w := range r.workers {
		r.logger.Info("stopping worker", zap.String("taskType", taskType))
		w.Close()
		w.AwaitClose()
	}
	r.workers = make(map[string]worker.JobWorker)
}
