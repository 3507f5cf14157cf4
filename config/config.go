// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"sqlite", "postgres"}
)

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.origin", "host_origin")

	v.BindEnv("db.driver", "db_driver")
	v.BindEnv("db.dsn", "db_dsn")

	v.BindEnv("redis.addr", "redis_addr")

	v.BindEnv("auth.bind_session_ip", "auth_bind_session_ip")

	v.BindEnv("cloudflare.account_id", "cloudflare_account_id")
	v.BindEnv("cloudflare.access_key_id", "cloudflare_access_key_id")
	v.BindEnv("cloudflare.secret_access_key", "cloudflare_secret_access_key")
	v.BindEnv("cloudflare.bucket", "cloudflare_bucket")

	v.BindEnv("mail.host", "mail_host")
	v.BindEnv("mail.port", "mail_port")
	v.BindEnv("mail.sender", "mail_sender")
	v.BindEnv("mail.password", "mail_password")

	v.BindEnv("bigcommerce.store_hash", "bigcommerce_store_hash")
	v.BindEnv("bigcommerce.access_token", "bigcommerce_access_token")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.origin", "http://localhost:5173")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("auth.bind_session_ip", false)

	v.SetDefault("list.default_limit", 20)
	v.SetDefault("list.max_limit", 250)

	v.SetDefault("verification.rate_limit", 1)
	v.SetDefault("verification.burst", 3)

	v.SetDefault("mail.port", 587)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("database dsn can't be empty")
	}

	if v.GetInt("list.default_limit") <= 0 || v.GetInt("list.max_limit") < v.GetInt("list.default_limit") {
		return errors.New("invalid list limits provided")
	}

	if v.GetString("cloudflare.account_id") == "" {
		return errors.New("account id can't be empty")
	}
	if v.GetString("cloudflare.access_key_id") == "" {
		return errors.New("account access id can't be empty")
	}
	if v.GetString("cloudflare.secret_access_key") == "" {
		return errors.New("secret access key can't be empty")
	}
	if v.GetString("cloudflare.bucket") == "" {
		return errors.New("bucket can't be empty")
	}

	if v.GetString("mail.host") == "" {
		fmt.Println("[WARNING]: No mail.host configured. Verification codes will be logged instead of emailed")
	} else if v.GetString("mail.sender") == "" {
		return errors.New("mail.sender can't be empty when mail.host is set")
	}

	if v.GetString("bigcommerce.store_hash") != "" && v.GetString("bigcommerce.access_token") == "" {
		return errors.New("bigcommerce access token is missing")
	}

	return nil
}
