package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// envSource resolves a variable from the process environment first and falls
// back to the values read from the dotenv file, matching godotenv.Load which
// never overrides variables that are already set.
type envSource struct {
	lookup func(string) (string, bool)
	file   map[string]string
}

func (s envSource) get(key string) (string, bool) {
	if s.lookup != nil {
		if v, ok := s.lookup(key); ok {
			return v, true
		}
	}
	v, ok := s.file[key]
	return v, ok
}

// readEnvFile loads the dotenv file named by -e/-env-file. Without the flag
// it tries ./.env and silently skips it when absent.
func readEnvFile(args []string) (map[string]string, error) {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	m, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return m, nil
}

// parseEnv overlays environment variables onto config.
//
// Recognised variables:
//
//	ENDPOINT_ADDR, DB_PATH, SECRET_KEY, ACCESS_TOKEN_EXPIRE_MINUTES,
//	REVOKE_ON_PASSWORD_RESET, PROJECT_NAME, LOG_LEVEL, MODEL_DIR,
//	DELAY_MODEL_PATH, DELAY_ENCODER_PATH, PRICE_MODEL_PATH, PRICE_ENCODER_PATH,
//	S3_BUCKET, S3_PREFIX, S3_REGION, S3_ROOT_USER, S3_ROOT_PASSWORD,
//	S3_BASE_ENDPOINT, TRUSTED_PROXIES, CORS_ORIGINS (comma-separated lists)
func parseEnv(config *Config, args []string, lookupEnv func(string) (string, bool)) error {
	file, err := readEnvFile(args)
	if err != nil {
		return err
	}
	src := envSource{lookup: lookupEnv, file: file}

	strs := map[string]*string{
		"ENDPOINT_ADDR":      &config.EndpointAddr,
		"DB_PATH":            &config.DatabaseDSN,
		"SECRET_KEY":         &config.SecretKey,
		"PROJECT_NAME":       &config.ProjectName,
		"LOG_LEVEL":          &config.LogLevel,
		"MODEL_DIR":          &config.ModelDir,
		"DELAY_MODEL_PATH":   &config.DelayModelFile,
		"DELAY_ENCODER_PATH": &config.DelayEncoderFile,
		"PRICE_MODEL_PATH":   &config.PriceModelFile,
		"PRICE_ENCODER_PATH": &config.PriceEncoderFile,
		"S3_BUCKET":          &config.S3Bucket,
		"S3_PREFIX":          &config.S3Prefix,
		"S3_REGION":          &config.S3Region,
		"S3_ROOT_USER":       &config.S3RootUser,
		"S3_ROOT_PASSWORD":   &config.S3RootPassword,
		"S3_BASE_ENDPOINT":   &config.S3BaseEndpoint,
	}
	for key, dst := range strs {
		if v, ok := src.get(key); ok && v != "" {
			*dst = v
		}
	}

	lists := map[string]*[]string{
		"TRUSTED_PROXIES": &config.TrustedProxies,
		"CORS_ORIGINS":    &config.CORSOrigins,
	}
	for key, dst := range lists {
		if v, ok := src.get(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	if v, ok := src.get("ACCESS_TOKEN_EXPIRE_MINUTES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		config.AccessTokenValidityDuration = time.Duration(n) * time.Minute
	}

	if v, ok := src.get("REVOKE_ON_PASSWORD_RESET"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REVOKE_ON_PASSWORD_RESET: %w", err)
		}
		config.RevokeOnPasswordReset = b
	}

	return nil
}

// splitList parses "a, b,,c" into [a b c].
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
