package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "NOTIFY"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "notify.db"
	defaultLogLevel       = "info"
	defaultGatewayURL     = "https://exp.host/--/api/v2/push/send"
	defaultGatewaySeconds = 10
	defaultTokenTTLMin    = 60
)

// AppConfig captures runtime configuration for the notification API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	GatewayURL     string
	GatewayTimeout time.Duration
	SigningSecret  string
	AdminPassword  string
	TokenTTL       time.Duration
	LogLevel       string
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

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("gateway.url", defaultGatewayURL)
	configViper.SetDefault("gateway.timeout_seconds", defaultGatewaySeconds)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMin)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		GatewayURL:     configViper.GetString("gateway.url"),
		GatewayTimeout: time.Duration(configViper.GetInt("gateway.timeout_seconds")) * time.Second,
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		AdminPassword:  configViper.GetString("auth.admin_password"),
		TokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AdminPassword) == "" {
		return fmt.Errorf("auth.admin_password is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GatewayURL) == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("gateway.timeout_seconds must be positive")
	}
	return nil
}
