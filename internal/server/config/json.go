package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/windbreaker/internal/flagx"
	"github.com/dmitrijs2005/windbreaker/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept either "30m" style strings or integer nanoseconds via
// timex.Duration. Absent fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddr                string          `json:"endpoint_addr"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	RevokeOnPasswordReset       *bool           `json:"revoke_on_password_reset"`
	ProjectName                 string          `json:"project_name"`
	LogLevel                    string          `json:"log_level"`
	ModelDir                    string          `json:"model_dir"`
	DelayModelFile              string          `json:"delay_model_file"`
	DelayEncoderFile            string          `json:"delay_encoder_file"`
	PriceModelFile              string          `json:"price_model_file"`
	PriceEncoderFile            string          `json:"price_encoder_file"`
	S3Bucket                    string          `json:"s3_bucket"`
	S3Prefix                    string          `json:"s3_prefix"`
	S3Region                    string          `json:"s3_region"`
	S3RootUser                  string          `json:"s3_root_user"`
	S3RootPassword              string          `json:"s3_root_password"`
	S3BaseEndpoint              string          `json:"s3_base_endpoint"`
	TrustedProxies              []string        `json:"trusted_proxies"`
	CORSOrigins                 []string        `json:"cors_origins"`
}

// parseJson loads the file given by -c/-config, if any, and overlays its
// non-empty values onto config.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigPath(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&config.EndpointAddr, c.EndpointAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	set(&config.ProjectName, c.ProjectName)
	set(&config.LogLevel, c.LogLevel)
	set(&config.ModelDir, c.ModelDir)
	set(&config.DelayModelFile, c.DelayModelFile)
	set(&config.DelayEncoderFile, c.DelayEncoderFile)
	set(&config.PriceModelFile, c.PriceModelFile)
	set(&config.PriceEncoderFile, c.PriceEncoderFile)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Prefix, c.S3Prefix)
	set(&config.S3Region, c.S3Region)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.TrustedProxies != nil {
		config.TrustedProxies = c.TrustedProxies
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RevokeOnPasswordReset != nil {
		config.RevokeOnPasswordReset = *c.RevokeOnPasswordReset
	}

	return nil
}
