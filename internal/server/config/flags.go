package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/identityd/internal/flagx"
)

var flagNames = []string{
	"-a", "-g", "-d", "-s", "-v", "-u", "-n", "-l",
	"-session-ttl", "-verification-ttl", "-otp-ttl", "-otp-digits",
	"-password-algorithm", "-bcrypt-cost", "-timeout",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string    HTTP bind address
//	-g string    gRPC health bind address
//	-d string    database DSN (postgres://, sqlite://, memory://)
//	-s string    session token secret
//	-v string    verification token secret
//	-u string    public base URL used in verification links
//	-n string    notifier: log, redis or s3
//	-l string    log level
//	-session-ttl, -verification-ttl, -otp-ttl, -timeout  Go durations
//	-otp-digits, -bcrypt-cost  integers
//	-password-algorithm  bcrypt or argon2id
//
// Unknown flags are filtered out first so other layers (-c) can share args.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("identityd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session token secret")
	fs.StringVar(&config.VerificationSecret, "v", config.VerificationSecret, "verification token secret")
	fs.StringVar(&config.PublicBaseURL, "u", config.PublicBaseURL, "public base URL for verification links")
	fs.StringVar(&config.Notifier, "n", config.Notifier, "notifier (log, redis, s3)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL, "session token validity")
	fs.DurationVar(&config.VerificationTTL, "verification-ttl", config.VerificationTTL, "verification token validity")
	fs.DurationVar(&config.OTPTTL, "otp-ttl", config.OTPTTL, "password reset code validity")
	fs.DurationVar(&config.OperationTimeout, "timeout", config.OperationTimeout, "per-call timeout for external dependencies")
	fs.IntVar(&config.OTPDigits, "otp-digits", config.OTPDigits, "password reset code length")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost factor")
	fs.StringVar(&config.PasswordAlgorithm, "password-algorithm", config.PasswordAlgorithm, "bcrypt or argon2id")

	return fs.Parse(flagx.FilterArgs(args, flagNames))
}
