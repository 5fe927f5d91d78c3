// internal/common/config/config.go
package config

import (
	"fmt"
	"net/url"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
	KnowledgeBase KnowledgeBaseConfig     `mapstructure:"knowledge_base"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Session       SessionConfig           `mapstructure:"session"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig configures the HTTP API and the health/metrics endpoints.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Knowledge base sources.
const (
	SourceFile          = "file"
	SourcePostgres      = "postgres"
	SourceElasticsearch = "elasticsearch"
)

// KnowledgeBaseConfig selects where the condition catalog is read from.
type KnowledgeBaseConfig struct {
	Source        string `mapstructure:"source"`
	Path          string `mapstructure:"path"`
	ConditionIdx  string `mapstructure:"condition_index"`
	KeywordIdx    string `mapstructure:"keyword_index"`
	LoadTimeout   int    `mapstructure:"load_timeout"` // milliseconds
	MaxConditions int    `mapstructure:"max_conditions"`
}

// ScoringConfig holds the tunable constants of the diagnosis pipeline.
type ScoringConfig struct {
	TextWeight                  float64 `mapstructure:"text_weight"`
	OverlapWeight               float64 `mapstructure:"overlap_weight"`
	MinimumRelevance            float64 `mapstructure:"minimum_relevance"`
	ConfidenceThreshold         float64 `mapstructure:"confidence_threshold"`
	DifferentialRange           float64 `mapstructure:"differential_range"`
	DifferentialOnLowConfidence bool    `mapstructure:"differential_on_low_confidence"`
	MaxResults                  int     `mapstructure:"max_results"`
	MaxClarificationSymptoms    int     `mapstructure:"max_clarification_symptoms"`
	MaxConfirmQuestions         int     `mapstructure:"max_confirm_questions"`
	IncludeIntakeQuestions      bool    `mapstructure:"include_intake_questions"`
	ChronicShortFactor          float64 `mapstructure:"chronic_short_factor"`
	AnswerPolicy                string  `mapstructure:"answer_policy"`
}

// SessionConfig controls the clarification session store.
type SessionConfig struct {
	TTLMinutes int    `mapstructure:"ttl_minutes"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// NotificationConfig holds settings for the notify-escalation worker.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"email"`
}

// TracingConfig enables the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
