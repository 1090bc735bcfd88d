package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yazok8/linktree-clone/internal/logging"
)

const (
	envPrefix             = "LINKTREE"
	defaultHTTPAddress    = "0.0.0.0:8000"
	defaultDatabaseDriver = "sqlite"
	defaultDatabaseDSN    = "linktree.db"
	defaultTokenTTL       = 24 * time.Hour
	defaultTokenIssuer    = "linktree-api"
	defaultTokenAudience  = "linktree-web"
	defaultCookieName     = "linktree_session"
	defaultAllowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Keys read from viper. Flags are bound to the same names.
const (
	KeyHTTPAddress    = "http.address"
	KeyDatabaseDriver = "database.driver"
	KeyDatabaseDSN    = "database.dsn"
	KeySigningSecret  = "auth.signing_secret"
	KeyTokenTTL       = "auth.token_ttl"
	KeyTokenIssuer    = "auth.issuer"
	KeyTokenAudience  = "auth.audience"
	KeyCookieName     = "auth.cookie_name"
	KeyCookieSecure   = "auth.cookie_secure"
	KeyAllowedOrigins = "cors.allowed_origins"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabaseDSN    string
	SigningSecret  string
	TokenTTL       time.Duration
	TokenIssuer    string
	TokenAudience  string
	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault(KeyHTTPAddress, defaultHTTPAddress)
	configViper.SetDefault(KeyDatabaseDriver, defaultDatabaseDriver)
	configViper.SetDefault(KeyDatabaseDSN, defaultDatabaseDSN)
	configViper.SetDefault(KeyTokenTTL, defaultTokenTTL)
	configViper.SetDefault(KeyTokenIssuer, defaultTokenIssuer)
	configViper.SetDefault(KeyTokenAudience, defaultTokenAudience)
	configViper.SetDefault(KeyCookieName, defaultCookieName)
	configViper.SetDefault(KeyCookieSecure, false)
	configViper.SetDefault(KeyAllowedOrigins, defaultAllowedOrigins)
	configViper.SetDefault(KeyLogLevel, defaultLogLevel)
	configViper.SetDefault(KeyLogFormat, defaultLogFormat)
	// AutomaticEnv only answers Get for keys viper already knows about.
	_ = configViper.BindEnv(KeySigningSecret)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    strings.TrimSpace(configViper.GetString(KeyHTTPAddress)),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString(KeyDatabaseDriver))),
		DatabaseDSN:    strings.TrimSpace(configViper.GetString(KeyDatabaseDSN)),
		SigningSecret:  configViper.GetString(KeySigningSecret),
		TokenTTL:       configViper.GetDuration(KeyTokenTTL),
		TokenIssuer:    strings.TrimSpace(configViper.GetString(KeyTokenIssuer)),
		TokenAudience:  strings.TrimSpace(configViper.GetString(KeyTokenAudience)),
		CookieName:     strings.TrimSpace(configViper.GetString(KeyCookieName)),
		CookieSecure:   configViper.GetBool(KeyCookieSecure),
		AllowedOrigins: splitList(configViper.GetString(KeyAllowedOrigins)),
		LogLevel:       configViper.GetString(KeyLogLevel),
		LogFormat:      strings.ToLower(strings.TrimSpace(configViper.GetString(KeyLogFormat))),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("%s is required", KeyHTTPAddress)
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("%s is required", KeySigningSecret)
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%s must be sqlite or postgres, got %q", KeyDatabaseDriver, c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("%s is required", KeyDatabaseDSN)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyTokenTTL)
	}
	if c.TokenIssuer == "" {
		return fmt.Errorf("%s is required", KeyTokenIssuer)
	}
	if c.TokenAudience == "" {
		return fmt.Errorf("%s is required", KeyTokenAudience)
	}
	if c.CookieName == "" {
		return fmt.Errorf("%s is required", KeyCookieName)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, c.LogFormat)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
