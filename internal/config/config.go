package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mail-agent/backend/pkg/models"
)

// EnvPrefix namespaces environment overrides, e.g. MAILAGENT_SMTP_HOST.
const EnvPrefix = "MAILAGENT"

// Config holds the configuration for the application.
type Config struct {
	Environment  string             `mapstructure:"environment"`
	Server       ServerConfig       `mapstructure:"server"`
	DB           DBConfig           `mapstructure:"db"`
	LLM          LLMConfig          `mapstructure:"llm"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	MailArchive  MailArchiveConfig  `mapstructure:"mail_archive"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Auth         AuthConfig         `mapstructure:"auth"`
	TLS          TLSConfig          `mapstructure:"tls"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	TLSAddr         string        `mapstructure:"tls_addr"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DBConfig selects and configures the record store backend.
type DBConfig struct {
	Driver         string `mapstructure:"driver"` // postgres, sqlite or memory
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConns       int32  `mapstructure:"max_conns"`
	Path           string `mapstructure:"path"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// DSN renders the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type LLMConfig struct {
	DefaultService string          `mapstructure:"default_service"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	Anthropic      AnthropicConfig `mapstructure:"anthropic"`
	Sidecar        SidecarConfig   `mapstructure:"sidecar"`
	Offline        OfflineConfig   `mapstructure:"offline"`
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

type SidecarConfig struct {
	URL string `mapstructure:"url"`
}

type OfflineConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SMTPConfig configures outbound mail. Mode "log" writes messages to the
// log instead of delivering them.
type SMTPConfig struct {
	Mode      string        `mapstructure:"mode"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	From      string        `mapstructure:"from"`
	FromName  string        `mapstructure:"from_name"`
	TLSPolicy string        `mapstructure:"tls_policy"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
}

type MailArchiveConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// DirectoryConfig configures the account directory. Mode is graph or simulated.
type DirectoryConfig struct {
	Mode              string        `mapstructure:"mode"`
	TenantID          string        `mapstructure:"tenant_id"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	GraphURL          string        `mapstructure:"graph_url"`
	TokenURL          string        `mapstructure:"token_url"`
	UsageLocation     string        `mapstructure:"usage_location"`
	Timeout           time.Duration `mapstructure:"timeout"`
	SimulateOnFailure bool          `mapstructure:"simulate_on_failure"`
}

type ProvisioningConfig struct {
	Domain            string `mapstructure:"domain"`
	TemporaryPassword string `mapstructure:"temporary_password"`
	JobTitle          string `mapstructure:"job_title"`
}

type WorkflowConfig struct {
	DefaultRecipient   string  `mapstructure:"default_recipient"`
	LookupLimit        int     `mapstructure:"lookup_limit"`
	BulkWorkers        int     `mapstructure:"bulk_workers"`
	BulkRatePerSecond  float64 `mapstructure:"bulk_rate_per_second"`
	UseModelClassifier bool    `mapstructure:"use_model_classifier"`
}

// AuthConfig configures the OIDC login and the session tokens it issues.
type AuthConfig struct {
	DevBypass     bool          `mapstructure:"dev_bypass"`
	Issuer        string        `mapstructure:"issuer"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	RedirectURL   string        `mapstructure:"redirect_url"`
	Scopes        []string      `mapstructure:"scopes"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type TLSConfig struct {
	Enable    bool     `mapstructure:"enable"`
	CertFile  string   `mapstructure:"cert_file"`
	KeyFile   string   `mapstructure:"key_file"`
	Hostnames []string `mapstructure:"hostnames"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls_addr", ":8443")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "mail_agent")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.path", "mail-agent.db")
	v.SetDefault("db.migrate_on_start", true)

	v.SetDefault("llm.default_service", "anthropic")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("llm.anthropic.max_tokens", 1024)
	v.SetDefault("llm.anthropic.base_url", "")
	v.SetDefault("llm.sidecar.url", "")
	v.SetDefault("llm.offline.enabled", true)

	v.SetDefault("smtp.mode", "smtp")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.from_name", "AI Agent System")
	v.SetDefault("smtp.tls_policy", "mandatory")
	v.SetDefault("smtp.timeout", 30*time.Second)
	v.SetDefault("smtp.workers", 4)

	v.SetDefault("mail_archive.enabled", false)
	v.SetDefault("mail_archive.bucket", "")
	v.SetDefault("mail_archive.prefix", "sent")
	v.SetDefault("mail_archive.region", "us-east-1")
	v.SetDefault("mail_archive.endpoint", "")
	v.SetDefault("mail_archive.access_key_id", "")
	v.SetDefault("mail_archive.secret_access_key", "")
	v.SetDefault("mail_archive.use_path_style", false)

	v.SetDefault("directory.mode", "simulated")
	v.SetDefault("directory.tenant_id", "")
	v.SetDefault("directory.client_id", "")
	v.SetDefault("directory.client_secret", "")
	v.SetDefault("directory.graph_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("directory.token_url", "")
	v.SetDefault("directory.usage_location", "US")
	v.SetDefault("directory.timeout", 30*time.Second)
	v.SetDefault("directory.simulate_on_failure", true)

	v.SetDefault("provisioning.domain", "yourcompany.onmicrosoft.com")
	v.SetDefault("provisioning.temporary_password", "changeit@123")
	v.SetDefault("provisioning.job_title", "Intern")

	v.SetDefault("workflow.default_recipient", "")
	v.SetDefault("workflow.lookup_limit", 10)
	v.SetDefault("workflow.bulk_workers", 4)
	v.SetDefault("workflow.bulk_rate_per_second", 1.0)
	v.SetDefault("workflow.use_model_classifier", true)

	v.SetDefault("auth.dev_bypass", false)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "http://localhost:8080/auth/callback")
	v.SetDefault("auth.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 8*time.Hour)
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{"localhost"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads the configuration from a file and the environment. When
// path is empty config.yaml is searched in . and ./config; a missing file is
// not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)
	config.Directory.GraphURL = strings.TrimRight(strings.TrimSpace(config.Directory.GraphURL), "/")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects values no component could run with. Missing credentials
// are not checked here; each component reports them when it is built.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return models.Invalid("db.driver", fmt.Sprintf("unsupported driver %q", c.DB.Driver))
	}
	switch c.SMTP.Mode {
	case "smtp", "log":
	default:
		return models.Invalid("smtp.mode", fmt.Sprintf("unsupported mode %q", c.SMTP.Mode))
	}
	switch c.Directory.Mode {
	case "graph", "simulated":
	default:
		return models.Invalid("directory.mode", fmt.Sprintf("unsupported mode %q", c.Directory.Mode))
	}
	if c.Workflow.BulkWorkers < 1 || c.Workflow.BulkWorkers > 8 {
		return models.Invalid("workflow.bulk_workers", "must be between 1 and 8")
	}
	if c.Workflow.BulkRatePerSecond < 0 {
		return models.Invalid("workflow.bulk_rate_per_second", "must not be negative")
	}
	if c.Workflow.LookupLimit < 1 {
		return models.Invalid("workflow.lookup_limit", "must be positive")
	}
	if c.SMTP.Workers < 1 {
		return models.Invalid("smtp.workers", "must be positive")
	}
	for name, d := range map[string]time.Duration{
		"llm.timeout":       c.LLM.Timeout,
		"smtp.timeout":      c.SMTP.Timeout,
		"directory.timeout": c.Directory.Timeout,
		"auth.session_ttl":  c.Auth.SessionTTL,
	} {
		if d <= 0 {
			return models.Invalid(name, "must be a positive duration")
		}
	}
	if strings.TrimSpace(c.Provisioning.Domain) == "" {
		return models.Invalid("provisioning.domain", "is required")
	}
	return nil
}

// normalizeIssuer strips surrounding space and a trailing slash so the
// issuer matches the iss claim of the provider's tokens.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
