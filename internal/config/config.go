package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Log        LogConfig
	Parser     ParserConfig
	Pipeline   PipelineConfig
	Classifier ClassifierConfig
	Session    SessionConfig
	Export     ExportConfig
	Cache      CacheConfig
}

// ParserProviderConfig holds settings for a single vision extraction provider.
type ParserProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	Endpoint     string `mapstructure:"endpoint"`
}

// ParserConfig holds extraction settings with multi-provider support.
type ParserConfig struct {
	// Flat fields describe the default provider when no primary block is set.
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`

	Primary   ParserProviderConfig `mapstructure:"primary"`
	Secondary ParserProviderConfig `mapstructure:"secondary"`

	// APIDelaySecs is the minimum time between two provider calls.
	APIDelaySecs float64 `mapstructure:"api_delay_secs"`
	PromptsDir   string  `mapstructure:"prompts_dir"`
}

// PrimaryConfig returns the primary provider config, falling back to the flat fields.
func (p *ParserConfig) PrimaryConfig() *ParserProviderConfig {
	if p.Primary.Provider != "" {
		return &p.Primary
	}
	return &ParserProviderConfig{
		Provider:     p.Provider,
		APIKey:       p.APIKey,
		DefaultModel: p.DefaultModel,
		MaxTokens:    p.MaxTokens,
		MaxRetries:   p.MaxRetries,
		TimeoutSecs:  p.TimeoutSecs,
	}
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (p *ParserConfig) SecondaryConfig() *ParserProviderConfig {
	if p.Secondary.Provider != "" {
		return &p.Secondary
	}
	return nil
}

// APIDelay returns the inter-call delay as a duration.
func (p *ParserConfig) APIDelay() time.Duration {
	return time.Duration(p.APIDelaySecs * float64(time.Second))
}

// PipelineConfig holds business settings for the declaration pipeline.
type PipelineConfig struct {
	HomeCountry             string            `mapstructure:"home_country"`
	DefaultFCLLCL           string            `mapstructure:"default_fcl_lcl"`
	ValueTolerancePercent   float64           `mapstructure:"value_tolerance_percent"`
	AutoApplyLedger         bool              `mapstructure:"auto_apply_ledger"`
	CountryCodeMap          map[string]string `mapstructure:"country_code_map"`
	CarrierToMode           map[string]string `mapstructure:"carrier_to_mode"`
	KnownBrands             []string          `mapstructure:"known_brands"`
	ValidCurrencies         []string          `mapstructure:"valid_currencies"`
	OutboundCurrencyOrder   []string          `mapstructure:"outbound_currency_order"`
	OutboundDefaultCurrency string            `mapstructure:"outbound_default_currency"`
}

// ClassifierConfig points at an optional YAML rules extension file.
type ClassifierConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// SessionConfig holds on-disk session state settings.
type SessionConfig struct {
	Dir        string        `mapstructure:"dir"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	SaveRawLLM bool          `mapstructure:"save_raw_llm"`
}

// ExportConfig holds declaration workbook settings.
type ExportConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	HeaderFillColor string `mapstructure:"header_fill_color"`
	HeaderFontColor string `mapstructure:"header_font_color"`
	ArchiveToS3     bool   `mapstructure:"archive_to_s3"`
	ArchivePrefix   string `mapstructure:"archive_prefix"`
}

// CacheConfig holds the extraction response cache settings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	// AllowedOrigins are the browser origins accepted by the CORS middleware.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings for the audit sink.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for workbook archival.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate returns a list of setting problems. An empty list means the config is usable.
func (c *Config) Validate() []string {
	var issues []string
	if c.Parser.PrimaryConfig().APIKey == "" {
		issues = append(issues, "API key is required")
	}
	if c.Parser.APIDelaySecs < 5 {
		issues = append(issues, "API delay should be at least 5 seconds to avoid rate limits")
	}
	if c.Pipeline.ValueTolerancePercent < 0 {
		issues = append(issues, "Value tolerance must not be negative")
	}
	return issues
}

var defaultCountryCodeMap = map[string]string{
	"SG": "SIN",
	"MY": "MAL",
	"VN": "VIT",
	"ID": "Indonesia",
	"PH": "PH",
}

var defaultCarrierToMode = map[string]string{
	"fedex":              "COURIER",
	"dhl":                "COURIER",
	"ups":                "COURIER",
	"tnt":                "COURIER",
	"turkish airlines":   "AIR",
	"singapore airlines": "AIR",
	"cathay":             "AIR",
	"eva air":            "AIR",
	"lufthansa":          "AIR",
	"emirates":           "AIR",
}

// Load reads configuration from environment variables with the SHIPDECL_ prefix and,
// when SHIPDECL_CONFIG_FILE is set, from that YAML file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("SHIPDECL_CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file path. An empty path reads env only.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHIPDECL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:3001,http://127.0.0.1:3001")

	// DB defaults (audit sink is off unless enabled)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "shipdecl")
	v.SetDefault("db.password", "shipdecl_secret")
	v.SetDefault("db.name", "shipdecl_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// S3 defaults
	v.SetDefault("s3.region", "ap-southeast-1")
	v.SetDefault("s3.bucket", "shipdecl-declarations")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Parser defaults
	v.SetDefault("parser.provider", "claude")
	v.SetDefault("parser.api_key", "")
	v.SetDefault("parser.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("parser.max_tokens", 2000)
	v.SetDefault("parser.max_retries", 3)
	v.SetDefault("parser.timeout_secs", 60)
	v.SetDefault("parser.api_delay_secs", 10)
	v.SetDefault("parser.prompts_dir", "prompts")
	v.SetDefault("parser.primary.provider", "")
	v.SetDefault("parser.primary.api_key", "")
	v.SetDefault("parser.primary.default_model", "")
	v.SetDefault("parser.primary.max_tokens", 2000)
	v.SetDefault("parser.primary.max_retries", 3)
	v.SetDefault("parser.primary.timeout_secs", 60)
	v.SetDefault("parser.primary.endpoint", "")
	v.SetDefault("parser.secondary.provider", "")
	v.SetDefault("parser.secondary.api_key", "")
	v.SetDefault("parser.secondary.default_model", "")
	v.SetDefault("parser.secondary.max_tokens", 2000)
	v.SetDefault("parser.secondary.max_retries", 3)
	v.SetDefault("parser.secondary.timeout_secs", 60)
	v.SetDefault("parser.secondary.endpoint", "")

	// Pipeline defaults
	v.SetDefault("pipeline.home_country", "SINGAPORE")
	v.SetDefault("pipeline.default_fcl_lcl", "LCL")
	v.SetDefault("pipeline.value_tolerance_percent", 5.0)
	v.SetDefault("pipeline.auto_apply_ledger", true)
	v.SetDefault("pipeline.country_code_map", defaultCountryCodeMap)
	v.SetDefault("pipeline.carrier_to_mode", defaultCarrierToMode)
	v.SetDefault("pipeline.known_brands", "NST,EXV,CPL,COC,IFC,PIE,INM,HPT,VIV,QTS,GTP,DKA")
	v.SetDefault("pipeline.valid_currencies", "USD,EUR,SGD,MYR,PHP,IDR,VND")
	v.SetDefault("pipeline.outbound_currency_order", "MYR,USD,IDR,PHP,SGD,EUR")
	v.SetDefault("pipeline.outbound_default_currency", "USD")

	// Classifier, session, export, cache defaults
	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("session.dir", ".sessions")
	v.SetDefault("session.max_age", "168h")
	v.SetDefault("session.save_raw_llm", true)
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.header_fill_color", "004d71")
	v.SetDefault("export.header_font_color", "FFFFFF")
	v.SetDefault("export.archive_to_s3", false)
	v.SetDefault("export.archive_prefix", "declarations")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                        "SHIPDECL_SERVER_PORT",
		"server.read_timeout":                "SHIPDECL_SERVER_READ_TIMEOUT",
		"server.write_timeout":               "SHIPDECL_SERVER_WRITE_TIMEOUT",
		"server.environment":                 "SHIPDECL_SERVER_ENVIRONMENT",
		"server.allowed_origins":             "SHIPDECL_SERVER_ALLOWED_ORIGINS",
		"db.enabled":                         "SHIPDECL_DB_ENABLED",
		"db.host":                            "SHIPDECL_DB_HOST",
		"db.port":                            "SHIPDECL_DB_PORT",
		"db.user":                            "SHIPDECL_DB_USER",
		"db.password":                        "SHIPDECL_DB_PASSWORD",
		"db.name":                            "SHIPDECL_DB_NAME",
		"db.sslmode":                         "SHIPDECL_DB_SSLMODE",
		"db.max_open":                        "SHIPDECL_DB_MAX_OPEN",
		"db.max_idle":                        "SHIPDECL_DB_MAX_IDLE",
		"s3.region":                          "SHIPDECL_S3_REGION",
		"s3.bucket":                          "SHIPDECL_S3_BUCKET",
		"s3.endpoint":                        "SHIPDECL_S3_ENDPOINT",
		"s3.access_key":                      "SHIPDECL_S3_ACCESS_KEY",
		"s3.secret_key":                      "SHIPDECL_S3_SECRET_KEY",
		"s3.max_file_size_mb":                "SHIPDECL_S3_MAX_FILE_SIZE_MB",
		"log.level":                          "SHIPDECL_LOG_LEVEL",
		"log.format":                         "SHIPDECL_LOG_FORMAT",
		"parser.provider":                    "SHIPDECL_PARSER_PROVIDER",
		"parser.api_key":                     "SHIPDECL_PARSER_API_KEY",
		"parser.default_model":               "SHIPDECL_PARSER_DEFAULT_MODEL",
		"parser.max_tokens":                  "SHIPDECL_PARSER_MAX_TOKENS",
		"parser.max_retries":                 "SHIPDECL_PARSER_MAX_RETRIES",
		"parser.timeout_secs":                "SHIPDECL_PARSER_TIMEOUT_SECS",
		"parser.api_delay_secs":              "SHIPDECL_PARSER_API_DELAY_SECS",
		"parser.prompts_dir":                 "SHIPDECL_PARSER_PROMPTS_DIR",
		"parser.primary.provider":            "SHIPDECL_PARSER_PRIMARY_PROVIDER",
		"parser.primary.api_key":             "SHIPDECL_PARSER_PRIMARY_API_KEY",
		"parser.primary.default_model":       "SHIPDECL_PARSER_PRIMARY_DEFAULT_MODEL",
		"parser.primary.max_tokens":          "SHIPDECL_PARSER_PRIMARY_MAX_TOKENS",
		"parser.primary.max_retries":         "SHIPDECL_PARSER_PRIMARY_MAX_RETRIES",
		"parser.primary.timeout_secs":        "SHIPDECL_PARSER_PRIMARY_TIMEOUT_SECS",
		"parser.primary.endpoint":            "SHIPDECL_PARSER_PRIMARY_ENDPOINT",
		"parser.secondary.provider":          "SHIPDECL_PARSER_SECONDARY_PROVIDER",
		"parser.secondary.api_key":           "SHIPDECL_PARSER_SECONDARY_API_KEY",
		"parser.secondary.default_model":     "SHIPDECL_PARSER_SECONDARY_DEFAULT_MODEL",
		"parser.secondary.max_tokens":        "SHIPDECL_PARSER_SECONDARY_MAX_TOKENS",
		"parser.secondary.max_retries":       "SHIPDECL_PARSER_SECONDARY_MAX_RETRIES",
		"parser.secondary.timeout_secs":      "SHIPDECL_PARSER_SECONDARY_TIMEOUT_SECS",
		"parser.secondary.endpoint":          "SHIPDECL_PARSER_SECONDARY_ENDPOINT",
		"pipeline.home_country":              "SHIPDECL_PIPELINE_HOME_COUNTRY",
		"pipeline.default_fcl_lcl":           "SHIPDECL_PIPELINE_DEFAULT_FCL_LCL",
		"pipeline.value_tolerance_percent":   "SHIPDECL_PIPELINE_VALUE_TOLERANCE_PERCENT",
		"pipeline.auto_apply_ledger":         "SHIPDECL_PIPELINE_AUTO_APPLY_LEDGER",
		"pipeline.known_brands":              "SHIPDECL_PIPELINE_KNOWN_BRANDS",
		"pipeline.valid_currencies":          "SHIPDECL_PIPELINE_VALID_CURRENCIES",
		"pipeline.outbound_currency_order":   "SHIPDECL_PIPELINE_OUTBOUND_CURRENCY_ORDER",
		"pipeline.outbound_default_currency": "SHIPDECL_PIPELINE_OUTBOUND_DEFAULT_CURRENCY",
		"classifier.rules_file":              "SHIPDECL_CLASSIFIER_RULES_FILE",
		"session.dir":                        "SHIPDECL_SESSION_DIR",
		"session.max_age":                    "SHIPDECL_SESSION_MAX_AGE",
		"session.save_raw_llm":               "SHIPDECL_SESSION_SAVE_RAW_LLM",
		"export.output_dir":                  "SHIPDECL_EXPORT_OUTPUT_DIR",
		"export.header_fill_color":           "SHIPDECL_EXPORT_HEADER_FILL_COLOR",
		"export.header_font_color":           "SHIPDECL_EXPORT_HEADER_FONT_COLOR",
		"export.archive_to_s3":               "SHIPDECL_EXPORT_ARCHIVE_TO_S3",
		"export.archive_prefix":              "SHIPDECL_EXPORT_ARCHIVE_PREFIX",
		"cache.enabled":                      "SHIPDECL_CACHE_ENABLED",
		"cache.ttl":                          "SHIPDECL_CACHE_TTL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.Server = ServerConfig{
		Port:         v.GetString("server.port"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),

		AllowedOrigins: splitList(v, "server.allowed_origins"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Parser = ParserConfig{
		Provider:     v.GetString("parser.provider"),
		APIKey:       v.GetString("parser.api_key"),
		DefaultModel: v.GetString("parser.default_model"),
		MaxTokens:    v.GetInt("parser.max_tokens"),
		MaxRetries:   v.GetInt("parser.max_retries"),
		TimeoutSecs:  v.GetInt("parser.timeout_secs"),
		APIDelaySecs: v.GetFloat64("parser.api_delay_secs"),
		PromptsDir:   v.GetString("parser.prompts_dir"),
		Primary:      providerConfig(v, "parser.primary"),
		Secondary:    providerConfig(v, "parser.secondary"),
	}

	cfg.Pipeline = PipelineConfig{
		HomeCountry:             v.GetString("pipeline.home_country"),
		DefaultFCLLCL:           v.GetString("pipeline.default_fcl_lcl"),
		ValueTolerancePercent:   v.GetFloat64("pipeline.value_tolerance_percent"),
		AutoApplyLedger:         v.GetBool("pipeline.auto_apply_ledger"),
		CountryCodeMap:          upperKeys(v.GetStringMapString("pipeline.country_code_map")),
		CarrierToMode:           v.GetStringMapString("pipeline.carrier_to_mode"),
		KnownBrands:             stringList(v, "pipeline.known_brands"),
		ValidCurrencies:         stringList(v, "pipeline.valid_currencies"),
		OutboundCurrencyOrder:   stringList(v, "pipeline.outbound_currency_order"),
		OutboundDefaultCurrency: v.GetString("pipeline.outbound_default_currency"),
	}

	cfg.Classifier = ClassifierConfig{
		RulesFile: v.GetString("classifier.rules_file"),
	}
	cfg.Session = SessionConfig{
		Dir:        v.GetString("session.dir"),
		MaxAge:     v.GetDuration("session.max_age"),
		SaveRawLLM: v.GetBool("session.save_raw_llm"),
	}
	cfg.Export = ExportConfig{
		OutputDir:       v.GetString("export.output_dir"),
		HeaderFillColor: v.GetString("export.header_fill_color"),
		HeaderFontColor: v.GetString("export.header_font_color"),
		ArchiveToS3:     v.GetBool("export.archive_to_s3"),
		ArchivePrefix:   v.GetString("export.archive_prefix"),
	}
	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("cache.enabled"),
		TTL:     v.GetDuration("cache.ttl"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) ParserProviderConfig {
	return ParserProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		MaxTokens:    v.GetInt(prefix + ".max_tokens"),
		MaxRetries:   v.GetInt(prefix + ".max_retries"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
		Endpoint:     v.GetString(prefix + ".endpoint"),
	}
}

// stringList is splitList with every entry upper-cased, for codes.
func stringList(v *viper.Viper, key string) []string {
	out := splitList(v, key)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}

// splitList reads a list given either as a YAML sequence or a comma-separated string.
func splitList(v *viper.Viper, key string) []string {
	var parts []string
	switch raw := v.Get(key).(type) {
	case []interface{}:
		for _, item := range raw {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = raw
	default:
		parts = strings.Split(v.GetString(key), ",")
	}
	var out []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// viper lower-cases map keys; country codes are matched upper-case.
func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[strings.ToUpper(k)] = val
	}
	return out
}
