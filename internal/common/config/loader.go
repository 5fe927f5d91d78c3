// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Answer policies for resubmitted clarifying answers.
const (
	AnswerPolicyContextOnly = "context_only"
	AnswerPolicyRefine      = "refine"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// on top of it and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // the overlay is optional

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// SCORING_TEXT_WEIGHT overrides scoring.text_weight
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg, v)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Notifications.SNS.TopicARN == "" {
		cfg.Notifications.SNS.TopicARN = os.Getenv("ESCALATION_TOPIC_ARN")
	}
	if cfg.KnowledgeBase.Path == "" {
		cfg.KnowledgeBase.Path = os.Getenv("KNOWLEDGE_BASE_PATH")
	}
}

// applyDefaults fills optional fields. Booleans whose default is true are
// only set when the key is absent, so an explicit false survives.
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "diagnosis-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5000
	}

	if cfg.KnowledgeBase.Source == "" {
		cfg.KnowledgeBase.Source = SourceFile
	}
	if cfg.KnowledgeBase.Path == "" && cfg.KnowledgeBase.Source == SourceFile {
		cfg.KnowledgeBase.Path = "data/knowledge_base.json"
	}
	if cfg.KnowledgeBase.ConditionIdx == "" {
		cfg.KnowledgeBase.ConditionIdx = "conditions"
	}
	if cfg.KnowledgeBase.KeywordIdx == "" {
		cfg.KnowledgeBase.KeywordIdx = "symptom_keywords"
	}
	if cfg.KnowledgeBase.LoadTimeout == 0 {
		cfg.KnowledgeBase.LoadTimeout = 10000
	}
	if cfg.KnowledgeBase.MaxConditions == 0 {
		cfg.KnowledgeBase.MaxConditions = 1000
	}

	applyScoringDefaults(&cfg.Scoring, v)

	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 60
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "diagnosis:session:"
	}

	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = "us-east-1"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func applyScoringDefaults(s *ScoringConfig, v *viper.Viper) {
	if !v.IsSet("scoring.text_weight") && !v.IsSet("scoring.overlap_weight") {
		s.TextWeight = 0.60
		s.OverlapWeight = 0.40
	}
	if !v.IsSet("scoring.minimum_relevance") {
		s.MinimumRelevance = 0.10
	}
	if !v.IsSet("scoring.confidence_threshold") {
		s.ConfidenceThreshold = 0.50
	}
	if !v.IsSet("scoring.differential_range") {
		s.DifferentialRange = 0.05
	}
	if !v.IsSet("scoring.differential_on_low_confidence") {
		s.DifferentialOnLowConfidence = true
	}
	if !v.IsSet("scoring.include_intake_questions") {
		s.IncludeIntakeQuestions = true
	}
	if !v.IsSet("scoring.max_results") {
		s.MaxResults = 5
	}
	if s.MaxClarificationSymptoms == 0 {
		s.MaxClarificationSymptoms = 4
	}
	if s.MaxConfirmQuestions == 0 {
		s.MaxConfirmQuestions = 3
	}
	if s.ChronicShortFactor == 0 {
		s.ChronicShortFactor = 0.25
	}
	if s.AnswerPolicy == "" {
		s.AnswerPolicy = AnswerPolicyContextOnly
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Enabled || cfg.KnowledgeBase.Source == SourcePostgres {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if (cfg.Database.Elasticsearch.Enabled || cfg.KnowledgeBase.Source == SourceElasticsearch) &&
		len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}

	switch cfg.KnowledgeBase.Source {
	case SourceFile:
		if cfg.KnowledgeBase.Path == "" {
			return fmt.Errorf("knowledge_base.path is required for the file source")
		}
	case SourcePostgres, SourceElasticsearch:
	default:
		return fmt.Errorf("knowledge_base.source %q is not one of file, postgres, elasticsearch", cfg.KnowledgeBase.Source)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.Email.Enabled && (cfg.Notifications.Email.FromEmail == "" || len(cfg.Notifications.Email.To) == 0) {
		return fmt.Errorf("notifications.email.from_email and notifications.email.to are required when email is enabled")
	}

	return validateScoring(cfg.Scoring)
}

func validateScoring(s ScoringConfig) error {
	unit := map[string]float64{
		"scoring.text_weight":          s.TextWeight,
		"scoring.overlap_weight":       s.OverlapWeight,
		"scoring.minimum_relevance":    s.MinimumRelevance,
		"scoring.confidence_threshold": s.ConfidenceThreshold,
		"scoring.differential_range":   s.DifferentialRange,
		"scoring.chronic_short_factor": s.ChronicShortFactor,
	}
	for key, val := range unit {
		if val < 0 || val > 1 || math.IsNaN(val) {
			return fmt.Errorf("%s must be within [0,1], got %v", key, val)
		}
	}
	if math.Abs(s.TextWeight+s.OverlapWeight-1) > 1e-9 {
		return fmt.Errorf("scoring.text_weight and scoring.overlap_weight must sum to 1, got %v", s.TextWeight+s.OverlapWeight)
	}
	if s.MaxResults < 0 || s.MaxClarificationSymptoms < 0 || s.MaxConfirmQuestions < 0 {
		return fmt.Errorf("scoring limits must not be negative")
	}
	if s.AnswerPolicy != AnswerPolicyContextOnly && s.AnswerPolicy != AnswerPolicyRefine {
		return fmt.Errorf("scoring.answer_policy %q is not one of %s, %s", s.AnswerPolicy, AnswerPolicyContextOnly, AnswerPolicyRefine)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
