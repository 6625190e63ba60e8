// Package config turns command-line flags, environment variables and the
// optional config file into the settings the reconciler commands run with.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang-bankrec-service/internal/matcher"
	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/reporter"
	"golang-bankrec-service/internal/scheduler"
	"golang-bankrec-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "BANKREC"

// Settings gathers everything the commands need.
type Settings struct {
	DatabasePath string `mapstructure:"db"`
	FixturePath  string `mapstructure:"fixture"`
	QueuePath    string `mapstructure:"queue"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	OutputFormat string `mapstructure:"output-format"`
	OutputFile   string `mapstructure:"output-file"`

	SessionTTL     time.Duration `mapstructure:"session-ttl"`
	BatchSize      int           `mapstructure:"batch-size"`
	TimeBudget     time.Duration `mapstructure:"time-budget"`
	RecencyCutoff  time.Duration `mapstructure:"recency-cutoff"`
	WorkerInterval time.Duration `mapstructure:"worker-interval"`
	MaxCandidates  int           `mapstructure:"max-candidates"`

	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", "bankrec.db")
	v.SetDefault("fixture", "ledger.yaml")
	v.SetDefault("queue", "")
	v.SetDefault("log-level", string(logger.InfoLevel))
	v.SetDefault("log-format", string(logger.TextFormat))
	v.SetDefault("output-format", string(reporter.FormatConsole))
	v.SetDefault("session-ttl", 8*time.Hour)
	v.SetDefault("batch-size", scheduler.DefaultBatchSize)
	v.SetDefault("time-budget", time.Minute)
	v.SetDefault("recency-cutoff", scheduler.DefaultRecencyCutoff)
	v.SetDefault("worker-interval", time.Minute)
	v.SetDefault("max-candidates", matcher.DefaultMatchingConfig().MaxCandidates)
	v.SetDefault("addr", ":8080")
}

// LoadEnvFiles loads .env files into the process environment before viper
// reads it. Missing files are ignored unless given explicitly.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			return godotenv.Load()
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads the settings from v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		DatabasePath:   v.GetString("db"),
		FixturePath:    v.GetString("fixture"),
		QueuePath:      v.GetString("queue"),
		LogLevel:       v.GetString("log-level"),
		LogFormat:      v.GetString("log-format"),
		OutputFormat:   v.GetString("output-format"),
		OutputFile:     v.GetString("output-file"),
		SessionTTL:     v.GetDuration("session-ttl"),
		BatchSize:      v.GetInt("batch-size"),
		TimeBudget:     v.GetDuration("time-budget"),
		RecencyCutoff:  v.GetDuration("recency-cutoff"),
		WorkerInterval: v.GetDuration("worker-interval"),
		MaxCandidates:  v.GetInt("max-candidates"),
		Addr:           v.GetString("addr"),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for values no command can run with.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if !reporter.OutputFormat(s.OutputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", s.OutputFormat)
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	if s.TimeBudget < 0 || s.SessionTTL < 0 || s.RecencyCutoff < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if s.OutputFile != "" {
		dir := filepath.Dir(s.OutputFile)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}

// CreateLoggerConfig builds the logger configuration. Verbose forces the
// debug level.
func (s *Settings) CreateLoggerConfig(verbose bool) *logger.Config {
	cfg := logger.DefaultConfig()
	if s.LogLevel != "" {
		cfg.Level = logger.Level(s.LogLevel)
	}
	if s.LogFormat != "" {
		cfg.Format = logger.Format(s.LogFormat)
	}
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	cfg.Output = logger.StderrOutput
	return cfg
}

// CreateMatchingConfig creates the candidate search configuration.
func (s *Settings) CreateMatchingConfig() *matcher.MatchingConfig {
	cfg := matcher.DefaultMatchingConfig()
	if s.MaxCandidates > 0 {
		cfg.MaxCandidates = s.MaxCandidates
	}
	return cfg
}

// CreateReconcilerConfig creates the service configuration.
func (s *Settings) CreateReconcilerConfig() *reconciler.Config {
	cfg := reconciler.DefaultConfig()
	cfg.SessionTTL = s.SessionTTL
	cfg.Scheduler.BatchSize = s.BatchSize
	cfg.Scheduler.TimeBudget = s.TimeBudget
	if s.RecencyCutoff > 0 {
		cfg.Scheduler.RecencyCutoff = s.RecencyCutoff
	}
	return cfg
}

// CreateReportConfig creates a report configuration for the output format.
func (s *Settings) CreateReportConfig() *reporter.ReportConfig {
	cfg := reporter.DefaultReportConfig()
	switch reporter.OutputFormat(s.OutputFormat) {
	case reporter.FormatJSON:
		cfg.Format = reporter.FormatJSON
		cfg.IncludeIDs = true
	case reporter.FormatCSV:
		cfg.Format = reporter.FormatCSV
		cfg.CSVHeaders = true
		cfg.CSVDelimiter = ','
	default:
		cfg.Format = reporter.FormatConsole
	}
	return cfg
}
