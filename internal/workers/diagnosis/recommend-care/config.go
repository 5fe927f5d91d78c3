package recommendcare

import (
	"time"

	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(app *config.Config) *Config {
	return &Config{Timeout: jobvars.Timeout(app, TaskType)}
}
