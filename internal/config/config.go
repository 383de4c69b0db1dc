package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/pratik-mahalle/costmonitor/internal/pkg/errors"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/validator"
)

// Report modes
const (
	ModeTimeframes = "timeframes"
	ModeRolling    = "rolling"
)

// DefaultAIServices is the closed set of services monitored with lowered thresholds
var DefaultAIServices = []string{
	"Amazon Comprehend",
	"Amazon Bedrock",
	"Amazon Textract",
	"Amazon Rekognition",
	"Amazon Transcribe",
	"Amazon Translate",
	"Amazon Polly",
	"Amazon SageMaker",
}

// Config holds all application configuration
type Config struct {
	AWS      AWSConfig
	Email    EmailConfig
	Anomaly  AnomalyConfig
	Report   ReportConfig
	Database DatabaseConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

// AWSConfig contains AWS client configuration
type AWSConfig struct {
	Region string `env:"AWS_REGION" validate:"required"`
	// Cost Explorer is only served from us-east-1
	CostExplorerRegion string `env:"COSTEXPLORER_REGION" validate:"required"`
	// Retries multiply the cost of expensive billing queries
	MaxRetries           int     `env:"AWS_MAX_RETRIES" validate:"gte=0,lte=1"`
	CostExplorerMaxPages int     `env:"COSTEXPLORER_MAX_PAGES" validate:"gte=1"`
	ListAccounts         bool    `env:"ORG_ACCOUNTS_ENABLED"`
	SESRequestsPerSecond float64 `env:"SES_REQUESTS_PER_SECOND" validate:"gt=0"`

	// Static credentials are optional; empty keys use the default chain
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
}

// EmailConfig contains report delivery configuration
type EmailConfig struct {
	From             string        `env:"EMAIL_FROM" validate:"required,email"`
	To               []string      `env:"EMAIL_TO" validate:"min=1"`
	MaxPerHour       int           `env:"EMAIL_MAX_PER_HOUR" validate:"gte=1"`
	DedupWindow      time.Duration `env:"EMAIL_DEDUP_WINDOW" validate:"gt=0"`
	RateWindow       time.Duration `env:"EMAIL_RATE_WINDOW" validate:"gt=0"`
	QuotaSafetyRatio float64       `env:"SES_QUOTA_SAFETY_RATIO" validate:"gt=0,lte=1"`
}

// AnomalyConfig contains the anomaly threshold pair and AI service settings
type AnomalyConfig struct {
	ThresholdPercent    float64  `env:"ANOMALY_THRESHOLD_PERCENT" validate:"gte=0"`
	ThresholdDollars    float64  `env:"ANOMALY_THRESHOLD_DOLLARS" validate:"gte=0"`
	AIServiceMultiplier float64  `env:"AI_SERVICE_MULTIPLIER" validate:"gt=0,lte=1"`
	AIServices          []string `env:"AI_SERVICES" validate:"min=1"`
}

// ReportConfig contains report generation configuration
type ReportConfig struct {
	Mode string `env:"REPORT_MODE" validate:"oneof=timeframes rolling"`
	// Invalid timezones fall back to UTC at run time
	Timezone      string `env:"USER_TIMEZONE"`
	ArchiveBucket string `env:"REPORT_ARCHIVE_BUCKET"`
	ArchivePrefix string `env:"REPORT_ARCHIVE_PREFIX"`
}

// DatabaseConfig contains run history storage configuration
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" validate:"oneof=none sqlite postgres"`
	Path            string        `env:"DB_PATH"`
	DSN             string        `env:"DB_DSN" validate:"required_if=Driver postgres"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" validate:"gte=1"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"`
	// Retention bounds how long run history is kept by history prune
	Retention time.Duration `env:"HISTORY_RETENTION" validate:"gt=0"`
}

// ScheduleConfig contains long-running scheduler configuration
type ScheduleConfig struct {
	Cron        string `env:"SCHEDULE_CRON" validate:"required"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" validate:"oneof=json console"`
}

// Load reads configuration from the environment and, when v has one, a config file.
// A nil v reads the environment only.
func Load(v *viper.Viper) (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()

	cfg := &Config{
		AWS: AWSConfig{
			Region:               getString(v, "AWS_REGION", "us-east-1"),
			CostExplorerRegion:   getString(v, "COSTEXPLORER_REGION", "us-east-1"),
			MaxRetries:           getInt(v, "AWS_MAX_RETRIES", 1),
			CostExplorerMaxPages: getInt(v, "COSTEXPLORER_MAX_PAGES", 10),
			ListAccounts:         getBool(v, "ORG_ACCOUNTS_ENABLED", true),
			SESRequestsPerSecond: getFloat(v, "SES_REQUESTS_PER_SECOND", 5),
			AccessKeyID:          getString(v, "AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getString(v, "AWS_SECRET_ACCESS_KEY", ""),
			SessionToken:         getString(v, "AWS_SESSION_TOKEN", ""),
		},
		Email: EmailConfig{
			From:             getString(v, "EMAIL_FROM", "noreply@awscostmonitor.com"),
			To:               getList(v, "EMAIL_TO", nil),
			MaxPerHour:       getInt(v, "EMAIL_MAX_PER_HOUR", 10),
			DedupWindow:      getDuration(v, "EMAIL_DEDUP_WINDOW", 30*time.Minute),
			RateWindow:       getDuration(v, "EMAIL_RATE_WINDOW", time.Hour),
			QuotaSafetyRatio: getFloat(v, "SES_QUOTA_SAFETY_RATIO", 0.8),
		},
		Anomaly: AnomalyConfig{
			ThresholdPercent:    getFloat(v, "ANOMALY_THRESHOLD_PERCENT", 50),
			ThresholdDollars:    getFloat(v, "ANOMALY_THRESHOLD_DOLLARS", 50),
			AIServiceMultiplier: getFloat(v, "AI_SERVICE_MULTIPLIER", 0.5),
			AIServices:          getList(v, "AI_SERVICES", DefaultAIServices),
		},
		Report: ReportConfig{
			Mode:          getString(v, "REPORT_MODE", ModeTimeframes),
			Timezone:      getString(v, "USER_TIMEZONE", "US/Central"),
			ArchiveBucket: getString(v, "REPORT_ARCHIVE_BUCKET", ""),
			ArchivePrefix: getString(v, "REPORT_ARCHIVE_PREFIX", "reports/"),
		},
		Database: DatabaseConfig{
			Driver:          getString(v, "DB_DRIVER", "none"),
			Path:            getString(v, "DB_PATH", "./costmonitor.db"),
			DSN:             getString(v, "DB_DSN", ""),
			MaxOpenConns:    getInt(v, "DB_MAX_OPEN_CONNS", 5),
			ConnMaxLifetime: getDuration(v, "DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Retention:       getDuration(v, "HISTORY_RETENTION", 90*24*time.Hour),
		},
		Schedule: ScheduleConfig{
			Cron:        getString(v, "SCHEDULE_CRON", "0 0 8 * * *"),
			MetricsAddr: getString(v, "METRICS_ADDR", ":9090"),
		},
		Logging: LoggingConfig{
			Level:  getString(v, "LOG_LEVEL", "info"),
			Format: getString(v, "LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()

	var errs []validator.ValidationError
	for _, section := range []interface{}{c.AWS, c.Email, c.Anomaly, c.Report, c.Database, c.Schedule, c.Logging} {
		errs = append(errs, v.Validate(section)...)
	}

	if c.Email.RateWindow < c.Email.DedupWindow {
		errs = append(errs, validator.ValidationError{
			Field:   "EMAIL_RATE_WINDOW",
			Tag:     "gtefield",
			Message: "EMAIL_RATE_WINDOW must not be shorter than EMAIL_DEDUP_WINDOW",
		})
	}

	if len(errs) > 0 {
		return apperrors.InvalidConfig(
			fmt.Sprintf("invalid configuration: %s", validator.Summary(errs)), errs)
	}
	return nil
}

// Helper functions. Unparseable values fall back to the default, as blanks do.

func getString(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloat(v *viper.Viper, key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

// getList accepts a comma-separated string (environment) or a YAML list (config file).
func getList(v *viper.Viper, key string, defaultValue []string) []string {
	var raw []string
	switch value := v.Get(key).(type) {
	case nil:
	case string:
		raw = strings.Split(value, ",")
	default:
		raw = v.GetStringSlice(key)
	}

	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
