package notifyescalation

import (
	"time"

	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/workers/diagnosis/jobvars"
)

type Config struct {
	Timeout    time.Duration
	Recipients []string
}

func LoadConfig(app *config.Config) *Config {
	cfg := &Config{Timeout: jobvars.Timeout(app, TaskType)}
	if app != nil {
		cfg.Recipients = app.Notifications.Email.To
	}
	return cfg
}
