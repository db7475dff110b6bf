package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/taskauth/internal/flagx"
	"github.com/dmitrijs2005/taskauth/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept either strings
// such as "45m" or integer nanoseconds.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDriver     string         `json:"database_driver"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	Issuer             string         `json:"issuer"`
	Audience           string         `json:"audience"`
	TokenLifetime      timex.Duration `json:"token_lifetime"`
	LogFormat          string         `json:"log_format"`
	LogLevel           string         `json:"log_level"`
	LoginRateLimit     *string        `json:"login_rate_limit"`
	RedisAddr          string         `json:"redis_addr"`
	CORSAllowedOrigins []string       `json:"cors_allowed_origins"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field it sets into config. login_rate_limit may be set to "" to disable
// throttling. Unreadable or invalid files panic.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.RedisAddr, c.RedisAddr)

	if c.TokenLifetime.Duration != 0 {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.LoginRateLimit != nil {
		config.LoginRateLimit = *c.LoginRateLimit
	}
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
