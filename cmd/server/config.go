package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"github.com/omshejul/passkey-service/internal/oauth"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port      string   `long:"port" env:"PORT" default:"8443" description:"Server port"`
	RPID      string   `long:"rp-id" env:"RP_ID" default:"localhost" description:"Relying party ID"`
	RPOrigins []string `long:"rp-origin" env:"RP_ORIGIN" env-delim:"," default:"https://localhost:8443" description:"Relying party origins"`

	// Storage config
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/passkeys.db" description:"SQLite database path"`
	SessionMode string `long:"session-mode" env:"SESSION_MODE" default:"memory" choice:"memory" choice:"redis" description:"Session storage backend"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`

	// Audit trail
	AuditMode string `long:"audit-mode" env:"AUDIT_MODE" default:"none" choice:"none" choice:"filesystem" choice:"s3" description:"Audit trail backend"`
	AuditPath string `long:"audit-path" env:"AUDIT_PATH" default:"./data" description:"Filesystem audit directory"`

	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"passkey-audit" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Audit Options"`

	// Google OAuth
	Google struct {
		ClientID     string `long:"google-client-id" env:"GOOGLE_CLIENT_ID" description:"Google OAuth client ID"`
		ClientSecret string `long:"google-client-secret" env:"GOOGLE_CLIENT_SECRET" description:"Google OAuth client secret"`
		RedirectURL  string `long:"google-redirect-url" env:"GOOGLE_REDIRECT_URL" description:"Google OAuth redirect URL"`
	} `group:"Google OAuth Options"`

	// Optional YAML file overriding the OAuth provider settings
	OAuthConfig string `long:"oauth-config" env:"OAUTH_CONFIG" description:"Path to YAML OAuth provider config"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// GoogleOAuthConfig resolves the Google provider settings, preferring the
// YAML file when one is configured.
func (c *Config) GoogleOAuthConfig() (oauth.GoogleConfig, error) {
	google := oauth.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
	}

	if c.OAuthConfig != "" {
		data, err := os.ReadFile(c.OAuthConfig)
		if err != nil {
			return google, fmt.Errorf("failed to read oauth config: %w", err)
		}

		var fileConfig struct {
			Google oauth.GoogleConfig `yaml:"google"`
		}
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return google, fmt.Errorf("failed to parse oauth config: %w", err)
		}
		google = fileConfig.Google
	}

	if google.ClientID == "" || google.ClientSecret == "" {
		return google, fmt.Errorf("google oauth client credentials are required")
	}

	return google, nil
}
