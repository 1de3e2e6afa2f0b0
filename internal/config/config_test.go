package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/config"
)

func TestParserConfig_PrimaryConfig_FlatFallback(t *testing.T) {
	cfg := config.ParserConfig{
		Provider:     "claude",
		APIKey:       "sk-flat",
		DefaultModel: "claude-sonnet-4-20250514",
		MaxTokens:    2000,
		MaxRetries:   3,
		TimeoutSecs:  30,
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "claude", primary.Provider)
	assert.Equal(t, "sk-flat", primary.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", primary.DefaultModel)
	assert.Equal(t, 2000, primary.MaxTokens)
	assert.Equal(t, 3, primary.MaxRetries)
	assert.Equal(t, 30, primary.TimeoutSecs)
}

func TestParserConfig_PrimaryConfig_ExplicitPrimary(t *testing.T) {
	cfg := config.ParserConfig{
		Provider: "flat-should-be-ignored",
		Primary: config.ParserProviderConfig{
			Provider: "openai",
			APIKey:   "sk-primary",
		},
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "openai", primary.Provider)
	assert.Equal(t, "sk-primary", primary.APIKey)
}

func TestParserConfig_SecondaryConfig(t *testing.T) {
	cfg := config.ParserConfig{Provider: "claude", APIKey: "sk-test"}
	assert.Nil(t, cfg.SecondaryConfig())

	cfg.Secondary = config.ParserProviderConfig{Provider: "openai", APIKey: "sk-secondary", DefaultModel: "gpt-4o"}
	secondary := cfg.SecondaryConfig()
	require.NotNil(t, secondary)
	assert.Equal(t, "openai", secondary.Provider)
	assert.Equal(t, "gpt-4o", secondary.DefaultModel)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SHIPDECL_CONFIG_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Parser.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Parser.DefaultModel)
	assert.Equal(t, 2000, cfg.Parser.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Parser.APIDelay())
	assert.Equal(t, "SINGAPORE", cfg.Pipeline.HomeCountry)
	assert.Equal(t, "LCL", cfg.Pipeline.DefaultFCLLCL)
	assert.Equal(t, 5.0, cfg.Pipeline.ValueTolerancePercent)
	assert.Equal(t, "SIN", cfg.Pipeline.CountryCodeMap["SG"])
	assert.Equal(t, "Indonesia", cfg.Pipeline.CountryCodeMap["ID"])
	assert.Equal(t, "COURIER", cfg.Pipeline.CarrierToMode["fedex"])
	assert.Equal(t, []string{"MYR", "USD", "IDR", "PHP", "SGD", "EUR"}, cfg.Pipeline.OutboundCurrencyOrder)
	assert.Contains(t, cfg.Pipeline.KnownBrands, "NST")
	assert.Contains(t, cfg.Pipeline.ValidCurrencies, "VND")
	assert.Equal(t, "004d71", cfg.Export.HeaderFillColor)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.DB.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHIPDECL_CONFIG_FILE", "")
	t.Setenv("SHIPDECL_PARSER_API_KEY", "sk-env")
	t.Setenv("SHIPDECL_PARSER_API_DELAY_SECS", "2.5")
	t.Setenv("SHIPDECL_PIPELINE_OUTBOUND_CURRENCY_ORDER", "usd, sgd")
	t.Setenv("SHIPDECL_PARSER_SECONDARY_PROVIDER", "openai")
	t.Setenv("SHIPDECL_SERVER_ALLOWED_ORIGINS", "https://Ops.Example.com, http://localhost:5173")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.Parser.PrimaryConfig().APIKey)
	assert.Equal(t, 2500*time.Millisecond, cfg.Parser.APIDelay())
	assert.Equal(t, []string{"USD", "SGD"}, cfg.Pipeline.OutboundCurrencyOrder)
	require.NotNil(t, cfg.Parser.SecondaryConfig())
	assert.Equal(t, "openai", cfg.Parser.SecondaryConfig().Provider)
	assert.Equal(t, []string{"https://Ops.Example.com", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipdecl.yaml")
	content := `
parser:
  api_key: sk-file
pipeline:
  home_country: MALAYSIA
  known_brands: [nst, exv]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.Parser.APIKey)
	assert.Equal(t, "MALAYSIA", cfg.Pipeline.HomeCountry)
	assert.Equal(t, []string{"NST", "EXV"}, cfg.Pipeline.KnownBrands)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &config.Config{Parser: config.ParserConfig{APIKey: "sk", APIDelaySecs: 10}}
	assert.Empty(t, cfg.Validate())

	cfg = &config.Config{Parser: config.ParserConfig{APIDelaySecs: 1}}
	issues := cfg.Validate()
	assert.Equal(t, []string{
		"API key is required",
		"API delay should be at least 5 seconds to avoid rate limits",
	}, issues)
}
