package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang-bankrec-service/internal/reporter"
	"golang-bankrec-service/internal/scheduler"
	"golang-bankrec-service/pkg/logger"

	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(newViper())
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}

	if settings.DatabasePath != "bankrec.db" {
		t.Errorf("expected default database path, got %q", settings.DatabasePath)
	}
	if settings.QueuePath != "" {
		t.Errorf("expected no queue by default, got %q", settings.QueuePath)
	}
	if settings.SessionTTL != 8*time.Hour {
		t.Errorf("expected 8h session ttl, got %s", settings.SessionTTL)
	}
	if settings.BatchSize != scheduler.DefaultBatchSize {
		t.Errorf("expected batch size %d, got %d", scheduler.DefaultBatchSize, settings.BatchSize)
	}
	if settings.OutputFormat != "console" {
		t.Errorf("expected console output, got %q", settings.OutputFormat)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BANKREC_OUTPUT_FORMAT", "json")
	t.Setenv("BANKREC_TIME_BUDGET", "30s")

	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	settings, err := Load(v)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	if settings.OutputFormat != "json" {
		t.Errorf("expected json output from the environment, got %q", settings.OutputFormat)
	}
	if settings.TimeBudget != 30*time.Second {
		t.Errorf("expected 30s time budget from the environment, got %s", settings.TimeBudget)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name          string
		set           map[string]interface{}
		errorContains string
	}{
		{name: "valid", set: nil},
		{name: "missing database", set: map[string]interface{}{"db": ""}, errorContains: "database path is required"},
		{name: "invalid output format", set: map[string]interface{}{"output-format": "xml"}, errorContains: "invalid output format"},
		{name: "negative batch size", set: map[string]interface{}{"batch-size": -1}, errorContains: "batch size cannot be negative"},
		{name: "negative time budget", set: map[string]interface{}{"time-budget": "-1s"}, errorContains: "durations cannot be negative"},
		{
			name:          "missing output directory",
			set:           map[string]interface{}{"output-file": "/non/existent/dir/report.json"},
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for key, value := range tt.set {
				v.Set(key, value)
			}
			_, err := Load(v)
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	settings := &Settings{LogLevel: "warn", LogFormat: "json"}

	cfg := settings.CreateLoggerConfig(false)
	if cfg.Level != logger.WarnLevel || cfg.Format != logger.JSONFormat {
		t.Errorf("unexpected logger config %+v", cfg)
	}
	if cfg.Output != logger.StderrOutput {
		t.Errorf("expected logs on stderr, got %s", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("logger config should be valid: %v", err)
	}

	if verboseCfg := settings.CreateLoggerConfig(true); verboseCfg.Level != logger.DebugLevel {
		t.Errorf("expected verbose to force debug, got %s", verboseCfg.Level)
	}
}

func TestCreateReconcilerConfig(t *testing.T) {
	settings := &Settings{
		SessionTTL: time.Hour,
		BatchSize:  25,
		TimeBudget: 10 * time.Second,
	}
	cfg := settings.CreateReconcilerConfig()

	if cfg.SessionTTL != time.Hour {
		t.Errorf("expected 1h session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.Scheduler.BatchSize != 25 || cfg.Scheduler.TimeBudget != 10*time.Second {
		t.Errorf("unexpected scheduler options %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.RecencyCutoff != scheduler.DefaultRecencyCutoff {
		t.Errorf("expected the default recency cutoff, got %s", cfg.Scheduler.RecencyCutoff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("reconciler config should be valid: %v", err)
	}
}

func TestCreateMatchingConfig(t *testing.T) {
	if cfg := (&Settings{MaxCandidates: 50}).CreateMatchingConfig(); cfg.MaxCandidates != 50 {
		t.Errorf("expected 50 candidates, got %d", cfg.MaxCandidates)
	}
	cfg := (&Settings{}).CreateMatchingConfig()
	if cfg.MaxCandidates <= 0 {
		t.Errorf("expected the default candidate limit, got %d", cfg.MaxCandidates)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("matching config should be valid: %v", err)
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format string
		want   reporter.OutputFormat
	}{
		{"console", reporter.FormatConsole},
		{"json", reporter.FormatJSON},
		{"csv", reporter.FormatCSV},
		{"", reporter.FormatConsole},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := (&Settings{OutputFormat: tt.format}).CreateReportConfig()
			if cfg.Format != tt.want {
				t.Errorf("expected format %s, got %s", tt.want, cfg.Format)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envPath, []byte("BANKREC_TEST_FIXTURE=fixtures/ledger.yaml\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("BANKREC_TEST_FIXTURE") })

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("failed to load env file: %v", err)
	}
	if got := os.Getenv("BANKREC_TEST_FIXTURE"); got != "fixtures/ledger.yaml" {
		t.Errorf("expected the env file value, got %q", got)
	}

	if err := LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for an explicit missing env file")
	}
}
