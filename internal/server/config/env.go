package config

import (
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// envSetters maps TASKAUTH_* variables to the fields they set.
var envSetters = map[string]func(c *Config, v string) error{
	"TASKAUTH_HTTP_ADDR":            func(c *Config, v string) error { c.HTTPAddr = v; return nil },
	"TASKAUTH_DATABASE_DRIVER":      func(c *Config, v string) error { c.DatabaseDriver = v; return nil },
	"TASKAUTH_DATABASE_DSN":         func(c *Config, v string) error { c.DatabaseDSN = v; return nil },
	"TASKAUTH_SECRET_KEY":           func(c *Config, v string) error { c.SecretKey = v; return nil },
	"TASKAUTH_ISSUER":               func(c *Config, v string) error { c.Issuer = v; return nil },
	"TASKAUTH_AUDIENCE":             func(c *Config, v string) error { c.Audience = v; return nil },
	"TASKAUTH_TOKEN_LIFETIME":       durationSetter(func(c *Config) *time.Duration { return &c.TokenLifetime }),
	"TASKAUTH_LOG_FORMAT":           func(c *Config, v string) error { c.LogFormat = v; return nil },
	"TASKAUTH_LOG_LEVEL":            func(c *Config, v string) error { c.LogLevel = v; return nil },
	"TASKAUTH_LOGIN_RATE_LIMIT":     func(c *Config, v string) error { c.LoginRateLimit = v; return nil },
	"TASKAUTH_REDIS_ADDR":           func(c *Config, v string) error { c.RedisAddr = v; return nil },
	"TASKAUTH_CORS_ALLOWED_ORIGINS": func(c *Config, v string) error { c.CORSAllowedOrigins = splitList(v); return nil },
	"TASKAUTH_SHUTDOWN_TIMEOUT":     durationSetter(func(c *Config) *time.Duration { return &c.ShutdownTimeout }),
}

func durationSetter(field func(c *Config) *time.Duration) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseEnv overlays TASKAUTH_* values. Variables come from a dotenv file
// (-env-file, or ./.env when present) and from the process environment,
// which wins over the file. An explicitly named file must exist.
func parseEnv(config *Config, args []string) {
	vars := map[string]string{}

	path := flagx.EnvFile(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	fileVars, err := godotenv.Read(path)
	switch {
	case err == nil:
		maps.Copy(vars, fileVars)
	case explicit:
		panic(fmt.Errorf("reading env file %s: %w", path, err))
	}

	for key := range envSetters {
		if v, ok := os.LookupEnv(key); ok {
			vars[key] = v
		}
	}

	for key, v := range vars {
		set, ok := envSetters[key]
		if !ok {
			continue
		}
		if err := set(config, v); err != nil {
			panic(fmt.Errorf("%s: %w", key, err))
		}
	}
}
