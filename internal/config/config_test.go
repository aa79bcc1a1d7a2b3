package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scout-cli/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1440, cfg.Browser.WindowWidth)
	assert.Equal(t, 900, cfg.Browser.WindowHeight)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)

	assert.Equal(t, config.ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 4096, cfg.AI.MaxTokens)

	assert.Equal(t, 50, cfg.Explore.MaxActions)
	assert.Equal(t, 5*time.Minute, cfg.Explore.MaxTime)
	assert.Equal(t, 500*time.Millisecond, cfg.Explore.SettlePause)

	assert.Equal(t, 1, cfg.Act.Retries)
	assert.Equal(t, 10*time.Second, cfg.Act.VerifyWindow)
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("explore.max_actions", 7)
	v.Set("browser.headless", false)

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Explore.MaxActions)
	assert.False(t, cfg.Browser.Headless)
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("SCOUT_AI_API_KEY", "test-key-123")

	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "test-key-123", cfg.AI.APIKey)
}

func TestValidateRejectsBadProvider(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("ai.provider", "skynet")

	_, err := config.NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported ai provider")
}

func TestValidateRejectsNonPositiveBudgets(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("explore.max_actions", 0)

	_, err := config.NewConfigFromViper(v)
	require.Error(t, err)

	v2 := viper.New()
	config.SetDefaults(v2)
	v2.Set("act.retries", -1)

	_, err = config.NewConfigFromViper(v2)
	require.Error(t, err)
}

func TestValidateFallbackProviders(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.AI.Fallbacks = []config.AICandidateConfig{{Provider: "openai", Model: "gpt-4o-mini"}}
	require.NoError(t, cfg.Validate())

	cfg.AI.Fallbacks = append(cfg.AI.Fallbacks, config.AICandidateConfig{Provider: "mystery"})
	require.Error(t, cfg.Validate())
}
