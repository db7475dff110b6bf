package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string            HTTP bind address (e.g., ":8080")
//	-d string            database DSN
//	-driver string       database driver, "pgx" or "sqlite"
//	-s string            token HMAC secret key
//	-t int               token lifetime, minutes
//	-issuer string       token issuer
//	-audience string     token audience
//	-log-format string   "json" or "text"
//	-log-level string    debug, info, warn or error
//	-login-rate string   login rate limit, e.g. "5-M"
//	-redis string        Redis address for the rate limiter
//	-cors string         comma-separated allowed origins
//
// Arguments are filtered with flagx.FilterArgs first so -c and -env-file
// never reach this parser.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{
		"-a", "-d", "-driver", "-s", "-t", "-issuer", "-audience",
		"-log-format", "-log-level", "-login-rate", "-redis", "-cors",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (pgx or sqlite)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenLifetime := fs.Int("t", int(config.TokenLifetime.Minutes()), "token lifetime (in minutes)")

	fs.StringVar(&config.Issuer, "issuer", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "audience", config.Audience, "token audience")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json or text)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LoginRateLimit, "login-rate", config.LoginRateLimit, "login rate limit per IP")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for rate limiting")
	cors := fs.String("cors", "", "comma-separated CORS allowed origins")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only explicit flags touch the fields below; the defaults above would
	// otherwise round sub-minute lifetimes coming from env or JSON
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenLifetime = time.Duration(*tokenLifetime) * time.Minute
		case "cors":
			config.CORSAllowedOrigins = splitList(*cors)
		}
	})
}
