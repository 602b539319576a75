package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"loanpulse/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"16777216" validate:"min=1024"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// AnalysisConfig contains every tunable of the mapping, normalization,
// metric and insight pipeline
type AnalysisConfig struct {
	// Schema mapper
	MinMappingConfidence float64 `yaml:"min_mapping_confidence" envconfig:"MIN_MAPPING_CONFIDENCE" default:"0.4" validate:"min=0,max=1"`
	// Extra aliases merged on top of the built-in per-field lists,
	// keyed by canonical field name.
	ExtraAliases map[string][]string `yaml:"extra_aliases" envconfig:"-"`

	// Normalizer
	MaxRows          int      `yaml:"max_rows" envconfig:"MAX_ROWS" default:"100000" validate:"min=1"`
	DateFormats      []string `yaml:"date_formats" envconfig:"DATE_FORMATS"`
	ApprovedSynonyms []string `yaml:"approved_synonyms" envconfig:"APPROVED_SYNONYMS"`
	RejectedSynonyms []string `yaml:"rejected_synonyms" envconfig:"REJECTED_SYNONYMS"`
	PendingSynonyms  []string `yaml:"pending_synonyms" envconfig:"PENDING_SYNONYMS"`

	// Metrics engine
	HistogramBucketDays  int `yaml:"histogram_bucket_days" envconfig:"HISTOGRAM_BUCKET_DAYS" default:"1" validate:"min=1"`
	HistogramCapDays     int `yaml:"histogram_cap_days" envconfig:"HISTOGRAM_CAP_DAYS" default:"30" validate:"min=1"`
	MinCorrelationSample int `yaml:"min_correlation_sample" envconfig:"MIN_CORRELATION_SAMPLE" default:"2" validate:"min=2"`

	// Insight thresholds
	ApprovalRateFloor      float64 `yaml:"approval_rate_floor" envconfig:"APPROVAL_RATE_FLOOR" default:"0.4" validate:"min=0,max=1"`
	ProcessingP90Ceiling   float64 `yaml:"processing_p90_ceiling" envconfig:"PROCESSING_P90_CEILING" default:"21" validate:"min=0"`
	OutlierShareCeiling    float64 `yaml:"outlier_share_ceiling" envconfig:"OUTLIER_SHARE_CEILING" default:"0.1" validate:"min=0,max=1"`
	RejectionShareCeiling  float64 `yaml:"rejection_share_ceiling" envconfig:"REJECTION_SHARE_CEILING" default:"0.5" validate:"min=0,max=1"`
	CorrelationReportFloor float64 `yaml:"correlation_report_floor" envconfig:"CORRELATION_REPORT_FLOOR" default:"0.2" validate:"min=0,max=1"`
	MinRecommendations     int     `yaml:"min_recommendations" envconfig:"MIN_RECOMMENDATIONS" default:"3" validate:"min=0"`
}

// DefaultDateFormats is the ordered list of accepted date layouts.
// First match wins during normalization.
var DefaultDateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"01-02-2006",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"Jan 2 2006",
	"2 Jan 2006",
	"January 2 2006",
	"2 January 2006",
}

// Default status synonym lists. Matching is case-insensitive substring,
// so "Approved - auto" still standardizes to approved.
var (
	DefaultApprovedSynonyms = []string{"approved", "accept", "funded", "complete"}
	DefaultRejectedSynonyms = []string{"rejected", "denied", "declined", "refuse"}
	DefaultPendingSynonyms  = []string{"pending", "in review", "processing", "open"}
)

// Load loads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom loads configuration using the given YAML file path. The file
// is optional; a missing file is not an error.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Environment overrides file values; envconfig fills defaults for
	// everything still unset.
	if err := envconfig.Process("LOANPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without consulting the
// environment. Used by tests and the sample-data path.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  16 << 20,
			RateLimitRPS:    50,
			RateLimitBurst:  25,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Analysis: AnalysisConfig{
			MinMappingConfidence:   0.4,
			MaxRows:                100000,
			HistogramBucketDays:    1,
			HistogramCapDays:       30,
			MinCorrelationSample:   2,
			ApprovalRateFloor:      0.4,
			ProcessingP90Ceiling:   21,
			OutlierShareCeiling:    0.1,
			RejectionShareCeiling:  0.5,
			CorrelationReportFloor: 0.2,
			MinRecommendations:     3,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills the slice-valued options envconfig defaults
// cannot express
func (c *Config) applyDefaults() {
	if len(c.Analysis.DateFormats) == 0 {
		c.Analysis.DateFormats = append([]string(nil), DefaultDateFormats...)
	}
	if len(c.Analysis.ApprovedSynonyms) == 0 {
		c.Analysis.ApprovedSynonyms = append([]string(nil), DefaultApprovedSynonyms...)
	}
	if len(c.Analysis.RejectedSynonyms) == 0 {
		c.Analysis.RejectedSynonyms = append([]string(nil), DefaultRejectedSynonyms...)
	}
	if len(c.Analysis.PendingSynonyms) == 0 {
		c.Analysis.PendingSynonyms = append([]string(nil), DefaultPendingSynonyms...)
	}
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Analysis.HistogramCapDays < c.Analysis.HistogramBucketDays {
		return fmt.Errorf("histogram cap (%d) must be at least one bucket width (%d)",
			c.Analysis.HistogramCapDays, c.Analysis.HistogramBucketDays)
	}
	for field := range c.Analysis.ExtraAliases {
		if !validCanonicalField(field) {
			return fmt.Errorf("extra_aliases references unknown canonical field %q", field)
		}
	}
	return nil
}

func validCanonicalField(name string) bool {
	switch domain.CanonicalField(name) {
	case domain.FieldApplicationID, domain.FieldApplicationDate, domain.FieldDecisionDate,
		domain.FieldStatus, domain.FieldLoanAmount, domain.FieldRejectionReason,
		domain.FieldCreditScore, domain.FieldIncome, domain.FieldLoanPurpose:
		return true
	}
	return false
}

// configFilePath returns the YAML config location, overridable via env
func configFilePath() string {
	if path := os.Getenv("LOANPULSE_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}
