package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/identityd/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept Go
// duration strings ("15m") or integer nanoseconds. Zero values mean "not set"
// and keep whatever the earlier layer provided.
type JsonConfig struct {
	HTTPAddr    string `json:"http_addr"`
	GRPCAddr    string `json:"grpc_addr"`
	DatabaseDSN string `json:"database_dsn"`

	SessionSecret      string         `json:"session_secret"`
	VerificationSecret string         `json:"verification_secret"`
	SessionTTL         timex.Duration `json:"session_ttl"`
	VerificationTTL    timex.Duration `json:"verification_ttl"`
	OTPTTL             timex.Duration `json:"otp_ttl"`
	OTPDigits          int            `json:"otp_digits"`

	PasswordAlgorithm    string `json:"password_algorithm"`
	BcryptCost           int    `json:"bcrypt_cost"`
	EmailCaseInsensitive *bool  `json:"email_case_insensitive"`

	PublicBaseURL       string         `json:"public_base_url"`
	OperationTimeout    timex.Duration `json:"operation_timeout"`
	HealthProbeInterval timex.Duration `json:"health_probe_interval"`

	Notifier      string `json:"notifier"`
	MailFrom      string `json:"mail_from"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisStream   string `json:"redis_stream"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3Prefix       string `json:"s3_prefix"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// parseJSON overlays the file at path onto config. An empty path is a no-op.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	c.applyTo(config)
	return nil
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SessionSecret, c.SessionSecret)
	setString(&config.VerificationSecret, c.VerificationSecret)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.VerificationTTL, c.VerificationTTL)
	setDuration(&config.OTPTTL, c.OTPTTL)
	setInt(&config.OTPDigits, c.OTPDigits)
	setString(&config.PasswordAlgorithm, c.PasswordAlgorithm)
	setInt(&config.BcryptCost, c.BcryptCost)
	if c.EmailCaseInsensitive != nil {
		config.EmailCaseInsensitive = *c.EmailCaseInsensitive
	}
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setDuration(&config.OperationTimeout, c.OperationTimeout)
	setDuration(&config.HealthProbeInterval, c.HealthProbeInterval)
	setString(&config.Notifier, c.Notifier)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.RedisStream, c.RedisStream)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
