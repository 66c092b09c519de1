package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds the runtime knobs of qacheck: everything that is not part of
// the QA document itself.
//
// Settings are loaded from:
//  1. qacheck.yaml in . or ./.qacheck (optional), or an explicit file
//  2. Environment variables prefixed with QACHECK_ (a .env file is honoured),
//     nested keys joined with "_": git.baseline -> QACHECK_GIT_BASELINE
//  3. Default values
type Settings struct {
	Log       LogSettings       `mapstructure:"log"`
	Git       GitSettings       `mapstructure:"git"`
	Validator ValidatorSettings `mapstructure:"validator"`
	Step      StepSettings      `mapstructure:"step"`
	Dashboard DashboardSettings `mapstructure:"dashboard"`
}

// LogSettings configures the diagnostic logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// GitSettings configures the change-set query used by the changed-only policy.
type GitSettings struct {
	Binary   string `mapstructure:"binary"`
	Baseline string `mapstructure:"baseline"`
}

// ValidatorSettings describes the two fixed commands of a validator step.
type ValidatorSettings struct {
	// Command launches the validator, e.g. java -jar validator_cli.jar.
	Command []string `mapstructure:"command"`

	// IGs are the resource directories passed with -ig.
	IGs []string `mapstructure:"igs"`

	// Analyzer interprets the validator output artifact.
	Analyzer []string `mapstructure:"analyzer"`

	// FailAt is the lowest issue severity that fails the step.
	FailAt string `mapstructure:"fail_at"`

	// IgnoredIssues is a file listing known issues the analyzer skips.
	IgnoredIssues string `mapstructure:"ignored_issues"`
}

// StepSettings bounds subprocess invocations.
type StepSettings struct {
	// Timeout applies to every subprocess of a step. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DashboardSettings configures the interactive menu server.
type DashboardSettings struct {
	Addr      string `mapstructure:"addr"`
	AssetsDir string `mapstructure:"assets_dir"`

	// DefaultChangedOnly picks the policy when a trigger does not say.
	DefaultChangedOnly bool `mapstructure:"default_changed_only"`

	// AllowedOrigins enables CORS and restricts websocket origins. Empty
	// leaves both open.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadSettings reads settings from file and environment. An empty path
// searches for an optional qacheck.yaml; a non-empty path must exist.
func LoadSettings(path string) (*Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("qacheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./.qacheck")
	}

	v.SetEnvPrefix("QACHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	return &s, nil
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	v := viper.New()
	setDefaults(v)
	var s Settings
	_ = v.Unmarshal(&s)
	return s
}

// Validate checks for settings that would make every run fail.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Git.Binary) == "" {
		return errors.New("git.binary must not be empty")
	}
	if strings.TrimSpace(s.Git.Baseline) == "" {
		return errors.New("git.baseline must not be empty")
	}
	if len(s.Validator.Command) == 0 {
		return errors.New("validator.command must not be empty")
	}
	if len(s.Validator.Analyzer) == 0 {
		return errors.New("validator.analyzer must not be empty")
	}
	if s.Step.Timeout < 0 {
		return errors.New("step.timeout must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Git
	v.SetDefault("git.binary", "git")
	v.SetDefault("git.baseline", "origin/main")

	// Validator
	v.SetDefault("validator.command", []string{"java", "-jar", "validator_cli.jar"})
	v.SetDefault("validator.igs", []string{"qa", "resources"})
	v.SetDefault("validator.analyzer", []string{"python3", "../hl7-validator-action/analyze_results.py", "--colorize"})
	v.SetDefault("validator.fail_at", "error")
	v.SetDefault("validator.ignored_issues", "known-issues.yml")

	// Step
	v.SetDefault("step.timeout", time.Duration(0))

	// Dashboard
	v.SetDefault("dashboard.addr", ":8080")
	v.SetDefault("dashboard.assets_dir", "util/qaAutomation")
	v.SetDefault("dashboard.default_changed_only", false)
	v.SetDefault("dashboard.allowed_origins", []string{})
}
