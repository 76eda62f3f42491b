// Package config handles configuration for the server component: defaults,
// environment (with an optional .env file), a JSON overlay, and command-line
// flags, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the prediction server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DatabaseDSN: SQLite file path, or a postgres:// URL for pgx.
//   - SecretKey: HMAC secret for signing session tokens (HS256). Required.
//   - AccessTokenValidityDuration: session token lifetime.
//   - RevokeOnPasswordReset: invalidate outstanding tokens when a password is reset.
//   - ModelDir and the *File fields: where model and encoder artifacts live.
//   - S3*: when S3Bucket is set, artifacts are fetched from object storage
//     instead of ModelDir.
//   - TrustedProxies: proxies whose forwarding headers are believed when
//     resolving the client address. Empty means the direct peer is used.
//   - CORSOrigins: allowed browser origins. Empty allows any origin.
type Config struct {
	EndpointAddr                string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	RevokeOnPasswordReset       bool
	ProjectName                 string
	Version                     string
	LogLevel                    string

	ModelDir         string
	DelayModelFile   string
	DelayEncoderFile string
	PriceModelFile   string
	PriceEncoderFile string

	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3RootUser     string
	S3RootPassword string
	S3BaseEndpoint string

	TrustedProxies []string
	CORSOrigins    []string
}

// LoadDefaults populates Config with development defaults. SecretKey is left
// empty on purpose and must be supplied.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8000"
	c.DatabaseDSN = "windbreaker_users.db"
	c.AccessTokenValidityDuration = 30 * time.Minute
	c.RevokeOnPasswordReset = true
	c.ProjectName = "WINDBREAKER.AI"
	c.Version = "2.0.0"
	c.LogLevel = "info"

	c.ModelDir = "models"
	c.DelayModelFile = "xgb_flight_delay.json"
	c.DelayEncoderFile = "delay_encoders.json"
	c.PriceModelFile = "xgb_price.json"
	c.PriceEncoderFile = "price_encoders.json"

	c.S3Region = "us-east-1"
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is not set (SECRET_KEY or -s)"))
	}
	if c.AccessTokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("access token validity must be positive, got %s", c.AccessTokenValidityDuration))
	}
	if c.EndpointAddr == "" {
		errs = append(errs, errors.New("endpoint address is empty"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is empty"))
	}
	return errors.Join(errs...)
}

// UseS3 reports whether artifacts come from object storage.
func (c *Config) UseS3() bool {
	return c.S3Bucket != ""
}

// LoadConfig builds a Config from os.Args and the process environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

// Load applies defaults, then environment variables (lookupEnv first, then
// the .env file), then the JSON file named by -c, then flags from args.
func Load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, args, lookupEnv); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	return cfg, nil
}
