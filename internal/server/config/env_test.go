package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_AllVariables(t *testing.T) {
	env := map[string]string{
		"ENDPOINT_ADDR":               "0.0.0.0:8080",
		"DB_PATH":                     "postgres://u:p@db/wb",
		"SECRET_KEY":                  "s3cr3t",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "90",
		"REVOKE_ON_PASSWORD_RESET":    "false",
		"PROJECT_NAME":                "WB",
		"LOG_LEVEL":                   "debug",
		"MODEL_DIR":                   "/srv/models",
		"DELAY_MODEL_PATH":            "delay.ubj",
		"DELAY_ENCODER_PATH":          "delay_enc.json",
		"PRICE_MODEL_PATH":            "price.ubj",
		"PRICE_ENCODER_PATH":          "price_enc.json",
		"S3_BUCKET":                   "models",
		"S3_PREFIX":                   "v2/",
		"S3_REGION":                   "eu-central-1",
		"S3_ROOT_USER":                "minio",
		"S3_ROOT_PASSWORD":            "minio123",
		"S3_BASE_ENDPOINT":            "http://minio:9000",
		"TRUSTED_PROXIES":             "10.0.0.1, 10.0.0.0/8",
		"CORS_ORIGINS":                "https://app.example,,http://localhost:5173",
	}

	c := defaults()
	require.NoError(t, parseEnv(c, nil, mapEnv(env)))

	assert.Equal(t, "0.0.0.0:8080", c.EndpointAddr)
	assert.Equal(t, "postgres://u:p@db/wb", c.DatabaseDSN)
	assert.Equal(t, "s3cr3t", c.SecretKey)
	assert.Equal(t, 90*time.Minute, c.AccessTokenValidityDuration)
	assert.False(t, c.RevokeOnPasswordReset)
	assert.Equal(t, "WB", c.ProjectName)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "/srv/models", c.ModelDir)
	assert.Equal(t, "delay.ubj", c.DelayModelFile)
	assert.Equal(t, "delay_enc.json", c.DelayEncoderFile)
	assert.Equal(t, "price.ubj", c.PriceModelFile)
	assert.Equal(t, "price_enc.json", c.PriceEncoderFile)
	assert.Equal(t, "models", c.S3Bucket)
	assert.Equal(t, "v2/", c.S3Prefix)
	assert.Equal(t, "eu-central-1", c.S3Region)
	assert.Equal(t, "minio", c.S3RootUser)
	assert.Equal(t, "minio123", c.S3RootPassword)
	assert.Equal(t, "http://minio:9000", c.S3BaseEndpoint)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.0/8"}, c.TrustedProxies)
	assert.Equal(t, []string{"https://app.example", "http://localhost:5173"}, c.CORSOrigins)
}

func TestParseEnv_EmptyValuesIgnored(t *testing.T) {
	c := defaults()
	require.NoError(t, parseEnv(c, nil, mapEnv(map[string]string{
		"ENDPOINT_ADDR":               "",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "",
	})))
	assert.Equal(t, ":8000", c.EndpointAddr)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
}

func TestEnvSource_ProcessEnvWins(t *testing.T) {
	src := envSource{
		lookup: mapEnv(map[string]string{"A": "process"}),
		file:   map[string]string{"A": "file", "B": "file"},
	}

	v, ok := src.get("A")
	assert.True(t, ok)
	assert.Equal(t, "process", v)

	v, ok = src.get("B")
	assert.True(t, ok)
	assert.Equal(t, "file", v)

	_, ok = src.get("C")
	assert.False(t, ok)
}
