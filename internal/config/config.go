package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Oracle   OracleConfig
	Merge    MergeConfig
	Pipeline PipelineConfig
	Export   ExportConfig
	S3       S3Config
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`

	// AllowedOrigins lists browser origins accepted by CORS.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OracleProviderConfig holds settings for a single LLM provider.
type OracleProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// OracleConfig lists the providers tried in order for every oracle call.
type OracleConfig struct {
	Primary   OracleProviderConfig `mapstructure:"primary"`
	Secondary OracleProviderConfig `mapstructure:"secondary"`
	Tertiary  OracleProviderConfig `mapstructure:"tertiary"`
}

// Providers returns the configured providers in fallback order, skipping empty slots.
func (o *OracleConfig) Providers() []*OracleProviderConfig {
	var out []*OracleProviderConfig
	for _, p := range []*OracleProviderConfig{&o.Primary, &o.Secondary, &o.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// MergeConfig controls multi-image reconciliation.
type MergeConfig struct {
	Assisted    bool `mapstructure:"assisted"`
	TimeoutSecs int  `mapstructure:"timeout_secs"`
}

// Timeout returns the advisory reconciliation deadline.
func (m *MergeConfig) Timeout() time.Duration {
	if m.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSecs) * time.Second
}

// PipelineConfig bounds the work accepted per request.
type PipelineConfig struct {
	MaxImages      int   `mapstructure:"max_images"`
	MaxImageSizeMB int64 `mapstructure:"max_image_size_mb"`
}

// ExportConfig controls the rendered export.
type ExportConfig struct {
	Format     string `mapstructure:"format"`
	IncludeBOM bool   `mapstructure:"include_bom"`
}

// S3Config holds AWS S3 settings for inbound mail and export archiving.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	ArchivePrefix string `mapstructure:"archive_prefix"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// EmailConfig holds result delivery settings.
type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	Region       string `mapstructure:"region"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	AttachImages bool   `mapstructure:"attach_images"`
}

// Load reads configuration from environment variables with the LABDIGITIZER_ prefix.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration through v, which may already hold values from a
// config file or command-line flags.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("LABDIGITIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Oracle defaults
	v.SetDefault("oracle.primary.provider", "openai")
	v.SetDefault("oracle.primary.api_key", "")
	v.SetDefault("oracle.primary.default_model", "gpt-4o")
	v.SetDefault("oracle.primary.max_retries", 0)
	v.SetDefault("oracle.primary.timeout_secs", 120)
	v.SetDefault("oracle.secondary.provider", "")
	v.SetDefault("oracle.secondary.api_key", "")
	v.SetDefault("oracle.secondary.default_model", "")
	v.SetDefault("oracle.secondary.max_retries", 0)
	v.SetDefault("oracle.secondary.timeout_secs", 120)
	v.SetDefault("oracle.tertiary.provider", "")
	v.SetDefault("oracle.tertiary.api_key", "")
	v.SetDefault("oracle.tertiary.default_model", "")
	v.SetDefault("oracle.tertiary.max_retries", 0)
	v.SetDefault("oracle.tertiary.timeout_secs", 120)

	// Merge defaults
	v.SetDefault("merge.assisted", true)
	v.SetDefault("merge.timeout_secs", 30)

	// Pipeline defaults
	v.SetDefault("pipeline.max_images", 5)
	v.SetDefault("pipeline.max_image_size_mb", 20)

	// Export defaults
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.include_bom", false)

	// S3 defaults
	v.SetDefault("s3.region", "us-west-2")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.archive_prefix", "exports")
	v.SetDefault("s3.presign_expiry", 3600)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-west-2")
	v.SetDefault("email.from_address", "digitizer@example.com")
	v.SetDefault("email.from_name", "Lab Data Digitization Service")
	v.SetDefault("email.attach_images", true)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "LABDIGITIZER_SERVER_PORT",
		"server.read_timeout":            "LABDIGITIZER_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "LABDIGITIZER_SERVER_WRITE_TIMEOUT",
		"server.environment":             "LABDIGITIZER_SERVER_ENVIRONMENT",
		"server.allowed_origins":         "LABDIGITIZER_SERVER_ALLOWED_ORIGINS",
		"log.level":                      "LABDIGITIZER_LOG_LEVEL",
		"log.format":                     "LABDIGITIZER_LOG_FORMAT",
		"oracle.primary.provider":        "LABDIGITIZER_ORACLE_PRIMARY_PROVIDER",
		"oracle.primary.api_key":         "LABDIGITIZER_ORACLE_PRIMARY_API_KEY",
		"oracle.primary.default_model":   "LABDIGITIZER_ORACLE_PRIMARY_DEFAULT_MODEL",
		"oracle.primary.max_retries":     "LABDIGITIZER_ORACLE_PRIMARY_MAX_RETRIES",
		"oracle.primary.timeout_secs":    "LABDIGITIZER_ORACLE_PRIMARY_TIMEOUT_SECS",
		"oracle.secondary.provider":      "LABDIGITIZER_ORACLE_SECONDARY_PROVIDER",
		"oracle.secondary.api_key":       "LABDIGITIZER_ORACLE_SECONDARY_API_KEY",
		"oracle.secondary.default_model": "LABDIGITIZER_ORACLE_SECONDARY_DEFAULT_MODEL",
		"oracle.secondary.max_retries":   "LABDIGITIZER_ORACLE_SECONDARY_MAX_RETRIES",
		"oracle.secondary.timeout_secs":  "LABDIGITIZER_ORACLE_SECONDARY_TIMEOUT_SECS",
		"oracle.tertiary.provider":       "LABDIGITIZER_ORACLE_TERTIARY_PROVIDER",
		"oracle.tertiary.api_key":        "LABDIGITIZER_ORACLE_TERTIARY_API_KEY",
		"oracle.tertiary.default_model":  "LABDIGITIZER_ORACLE_TERTIARY_DEFAULT_MODEL",
		"oracle.tertiary.max_retries":    "LABDIGITIZER_ORACLE_TERTIARY_MAX_RETRIES",
		"oracle.tertiary.timeout_secs":   "LABDIGITIZER_ORACLE_TERTIARY_TIMEOUT_SECS",
		"merge.assisted":                 "LABDIGITIZER_MERGE_ASSISTED",
		"merge.timeout_secs":             "LABDIGITIZER_MERGE_TIMEOUT_SECS",
		"pipeline.max_images":            "LABDIGITIZER_PIPELINE_MAX_IMAGES",
		"pipeline.max_image_size_mb":     "LABDIGITIZER_PIPELINE_MAX_IMAGE_SIZE_MB",
		"export.format":                  "LABDIGITIZER_EXPORT_FORMAT",
		"export.include_bom":             "LABDIGITIZER_EXPORT_INCLUDE_BOM",
		"s3.region":                      "LABDIGITIZER_S3_REGION",
		"s3.bucket":                      "LABDIGITIZER_S3_BUCKET",
		"s3.endpoint":                    "LABDIGITIZER_S3_ENDPOINT",
		"s3.access_key":                  "LABDIGITIZER_S3_ACCESS_KEY",
		"s3.secret_key":                  "LABDIGITIZER_S3_SECRET_KEY",
		"s3.archive_prefix":              "LABDIGITIZER_S3_ARCHIVE_PREFIX",
		"s3.presign_expiry":              "LABDIGITIZER_S3_PRESIGN_EXPIRY",
		"email.provider":                 "LABDIGITIZER_EMAIL_PROVIDER",
		"email.region":                   "LABDIGITIZER_EMAIL_REGION",
		"email.from_address":             "LABDIGITIZER_EMAIL_FROM_ADDRESS",
		"email.from_name":                "LABDIGITIZER_EMAIL_FROM_NAME",
		"email.attach_images":            "LABDIGITIZER_EMAIL_ATTACH_IMAGES",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set PORT. Use it if LABDIGITIZER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LABDIGITIZER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Oracle = OracleConfig{
		Primary:   providerConfig(v, "oracle.primary"),
		Secondary: providerConfig(v, "oracle.secondary"),
		Tertiary:  providerConfig(v, "oracle.tertiary"),
	}
	cfg.Merge = MergeConfig{
		Assisted:    v.GetBool("merge.assisted"),
		TimeoutSecs: v.GetInt("merge.timeout_secs"),
	}
	cfg.Pipeline = PipelineConfig{
		MaxImages:      v.GetInt("pipeline.max_images"),
		MaxImageSizeMB: v.GetInt64("pipeline.max_image_size_mb"),
	}
	cfg.Export = ExportConfig{
		Format:     strings.ToLower(v.GetString("export.format")),
		IncludeBOM: v.GetBool("export.include_bom"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		ArchivePrefix: v.GetString("s3.archive_prefix"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:     v.GetString("email.provider"),
		Region:       v.GetString("email.region"),
		FromAddress:  v.GetString("email.from_address"),
		FromName:     v.GetString("email.from_name"),
		AttachImages: v.GetBool("email.attach_images"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) OracleProviderConfig {
	return OracleProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		MaxRetries:   v.GetInt(prefix + ".max_retries"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}

// splitList parses a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
