package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   database DSN (SQLite path or postgres:// URL)
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r bool     revoke tokens on password reset (use -r=false to disable)
//	-m string   model artifact directory
//	-b string   S3 bucket for model artifacts
//	-g string   S3 region
//	-l string   log level (debug, info, warn, error)
//
// -c and -e are reserved for the JSON config and dotenv file paths.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-t", "-r", "-m", "-b", "-g", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.BoolVar(&config.RevokeOnPasswordReset, "r", config.RevokeOnPasswordReset, "revoke tokens on password reset")
	fs.StringVar(&config.ModelDir, "m", config.ModelDir, "model artifact directory")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for model artifacts")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		}
	})
	return nil
}
