// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Explore ExploreConfig `mapstructure:"explore" yaml:"explore"`
	Act     ActConfig     `mapstructure:"act" yaml:"act"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// AIProvider identifies a vision backend implementation.
type AIProvider string

const (
	ProviderGemini AIProvider = "gemini"
	ProviderOpenAI AIProvider = "openai"
)

// AICandidateConfig names one (provider, model) pair in the fallback chain.
type AICandidateConfig struct {
	Provider AIProvider `mapstructure:"provider" yaml:"provider"`
	Model    string     `mapstructure:"model" yaml:"model"`
	APIKey   string     `mapstructure:"api_key" yaml:"api_key"`
	Endpoint string     `mapstructure:"endpoint" yaml:"endpoint"`
}

// AIConfig configures the vision backend and its fallback chain. The primary
// candidate is tried first; Fallbacks are tried in order when the primary
// fails at the transport level.
type AIConfig struct {
	Provider          AIProvider          `mapstructure:"provider" yaml:"provider"`
	Model             string              `mapstructure:"model" yaml:"model"`
	APIKey            string              `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string              `mapstructure:"endpoint" yaml:"endpoint"`
	Fallbacks         []AICandidateConfig `mapstructure:"fallbacks" yaml:"fallbacks"`
	MaxTokens         int                 `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64             `mapstructure:"temperature" yaml:"temperature"`
	RequestTimeout    time.Duration       `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetryElapsed   time.Duration       `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	RequestsPerMinute float64             `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ExploreConfig bounds an autonomous exploration session.
type ExploreConfig struct {
	MaxActions      int           `mapstructure:"max_actions" yaml:"max_actions"`
	MaxTime         time.Duration `mapstructure:"max_time" yaml:"max_time"`
	MaxDepth        int           `mapstructure:"max_depth" yaml:"max_depth"`
	WaitForSelector string        `mapstructure:"wait_for_selector" yaml:"wait_for_selector"`
	AppReadyScript  string        `mapstructure:"app_ready_script" yaml:"app_ready_script"`
	SettlePause     time.Duration `mapstructure:"settle_pause" yaml:"settle_pause"`
	Output          string        `mapstructure:"output" yaml:"output"`
	AuditDir        string        `mapstructure:"audit_dir" yaml:"audit_dir"`
}

// ActConfig bounds single instruction execution.
type ActConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries      int           `mapstructure:"retries" yaml:"retries"`
	VerifyPoll   time.Duration `mapstructure:"verify_poll" yaml:"verify_poll"`
	VerifyWindow time.Duration `mapstructure:"verify_window" yaml:"verify_window"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1440)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.post_load_wait", "1500ms")

	// -- AI --
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.request_timeout", "90s")
	v.SetDefault("ai.max_retry_elapsed", "2m")
	v.SetDefault("ai.requests_per_minute", 30)

	// -- Explore --
	v.SetDefault("explore.max_actions", 50)
	v.SetDefault("explore.max_time", "300s")
	v.SetDefault("explore.max_depth", 5)
	v.SetDefault("explore.settle_pause", "500ms")
	v.SetDefault("explore.output", "exploration_report.html")
	v.SetDefault("explore.audit_dir", "")

	// -- Act --
	v.SetDefault("act.timeout", "5s")
	v.SetDefault("act.retries", 1)
	v.SetDefault("act.verify_poll", "1s")
	v.SetDefault("act.verify_window", "10s")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that already has defaults, file, env and flag values merged.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// API keys are secrets; they come from the environment, never the file.
	v.BindEnv("ai.api_key", "SCOUT_AI_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.AI.APIKey == "" {
		if key := os.Getenv("SCOUT_AI_API_KEY"); key != "" {
			cfg.AI.APIKey = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the session could not run with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported ai provider: %q", c.AI.Provider)
	}
	for _, fb := range c.AI.Fallbacks {
		switch fb.Provider {
		case ProviderGemini, ProviderOpenAI:
		default:
			return fmt.Errorf("unsupported fallback provider: %q", fb.Provider)
		}
	}
	if c.Explore.MaxActions <= 0 {
		return fmt.Errorf("explore.max_actions must be positive, got %d", c.Explore.MaxActions)
	}
	if c.Explore.MaxTime <= 0 {
		return fmt.Errorf("explore.max_time must be positive, got %s", c.Explore.MaxTime)
	}
	if c.Act.Retries < 0 {
		return fmt.Errorf("act.retries must not be negative, got %d", c.Act.Retries)
	}
	return nil
}
