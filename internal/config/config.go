// Package config provides functionality for managing configuration options
// for the client using command-line flags, environment variables, an optional
// JSON config file and an optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the backend address used for local development.
const DefaultBaseURL = "http://localhost:8000/api"

// Options holds the configuration values for the client.
type Options struct {
	// BaseURL is the backend REST API root, including the /api prefix.
	BaseURL string `json:"base_url"`

	// Timeout bounds every request. Zero means no client-side timeout.
	Timeout time.Duration `json:"-"`

	// LogLevel is passed to logger.Init.
	LogLevel string `json:"log_level"`

	// Storage selects where the session token is persisted.
	Storage Storage `json:"storage"`

	// TLS holds optional certificate paths for HTTPS backends.
	TLS TLS `json:"tls"`

	// MetricsAddr enables a Prometheus /metrics listener when set.
	MetricsAddr string `json:"metrics_addr"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

// Storage configures the persisted client state backend.
type Storage struct {
	// Driver is one of file, postgres, redis or memory.
	Driver string `json:"driver"`
	// Path is the JSON file used by the file driver.
	Path string `json:"path"`
	// DSN is the Postgres connection string.
	DSN string `json:"dsn"`
	// RedisAddr is host:port of the Redis server.
	RedisAddr string `json:"redis_addr"`
	// RedisPassword is optional.
	RedisPassword string `json:"redis_password"`
	// RedisDB selects the Redis logical database.
	RedisDB int `json:"redis_db"`
	// Secret, when set, seals values written by the file driver.
	Secret string `json:"secret"`
}

// TLS holds PEM file paths. All fields are optional.
type TLS struct {
	CAFile   string `json:"ca_file"`
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

// fileOptions is the on-disk shape; the timeout is written as "30s".
type fileOptions struct {
	Options
	Timeout string `json:"timeout"`
}

// Parse loads .env (when present) and resolves the options. Precedence,
// highest first: environment variables, flags set on the command line, the
// JSON config file, flag defaults.
func Parse() (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(flag.CommandLine, os.Args[1:], os.LookupEnv)
}

func parse(fs *flag.FlagSet, args []string, lookupEnv func(string) (string, bool)) (*Options, error) {
	opts := &Options{}

	fs.StringVar(&opts.BaseURL, "url", DefaultBaseURL, "backend API base URL")
	fs.DurationVar(&opts.Timeout, "timeout", 0, "per-request timeout (0 disables)")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&opts.Storage.Driver, "storage", "file", "token storage: file|postgres|redis|memory")
	fs.StringVar(&opts.Storage.Path, "storage-path", "", "token file path for the file storage")
	fs.StringVar(&opts.Storage.DSN, "storage-dsn", "", "postgres DSN for the postgres storage")
	fs.StringVar(&opts.Storage.RedisAddr, "redis-addr", "localhost:6379", "redis address for the redis storage")
	fs.StringVar(&opts.TLS.CAFile, "ca", "", "path to CA cert")
	fs.StringVar(&opts.TLS.CertFile, "cert", "", "path to client cert")
	fs.StringVar(&opts.TLS.KeyFile, "key", "", "path to client key")
	fs.StringVar(&opts.MetricsAddr, "metrics", "", "serve Prometheus metrics on ip:port")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	if configPath, ok := lookupEnv("CONFIG"); ok && configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			var fromFile fileOptions
			if err := json.Unmarshal(data, &fromFile); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
			if fromFile.Timeout != "" {
				d, err := time.ParseDuration(fromFile.Timeout)
				if err != nil {
					return nil, fmt.Errorf("parse config file timeout: %w", err)
				}
				fromFile.Options.Timeout = d
			}
			merge(opts, &fromFile.Options, setFlags)
		}
	}

	if err := applyEnv(opts, lookupEnv); err != nil {
		return nil, err
	}
	return opts, nil
}

// merge copies non-zero file values into opts unless the matching flag was set
// on the command line.
func merge(opts, file *Options, setFlags map[string]bool) {
	str := func(dst *string, src, flagName string) {
		if src != "" && !setFlags[flagName] {
			*dst = src
		}
	}
	str(&opts.BaseURL, file.BaseURL, "url")
	str(&opts.LogLevel, file.LogLevel, "log-level")
	str(&opts.Storage.Driver, file.Storage.Driver, "storage")
	str(&opts.Storage.Path, file.Storage.Path, "storage-path")
	str(&opts.Storage.DSN, file.Storage.DSN, "storage-dsn")
	str(&opts.Storage.RedisAddr, file.Storage.RedisAddr, "redis-addr")
	str(&opts.Storage.RedisPassword, file.Storage.RedisPassword, "")
	str(&opts.Storage.Secret, file.Storage.Secret, "")
	str(&opts.TLS.CAFile, file.TLS.CAFile, "ca")
	str(&opts.TLS.CertFile, file.TLS.CertFile, "cert")
	str(&opts.TLS.KeyFile, file.TLS.KeyFile, "key")
	str(&opts.MetricsAddr, file.MetricsAddr, "metrics")
	if file.Timeout != 0 && !setFlags["timeout"] {
		opts.Timeout = file.Timeout
	}
	if file.Storage.RedisDB != 0 {
		opts.Storage.RedisDB = file.Storage.RedisDB
	}
}

// applyEnv overrides options with environment variables if set.
func applyEnv(opts *Options, lookupEnv func(string) (string, bool)) error {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookupEnv(k); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	if v, ok := get("KONGTZE_API_URL", "NEXT_PUBLIC_API_URL"); ok {
		opts.BaseURL = v
	}
	if v, ok := get("KONGTZE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid KONGTZE_TIMEOUT %q: %w", v, err)
		}
		opts.Timeout = d
	}
	if v, ok := get("KONGTZE_LOG_LEVEL"); ok {
		opts.LogLevel = v
	}
	if v, ok := get("KONGTZE_STORAGE"); ok {
		opts.Storage.Driver = v
	}
	if v, ok := get("KONGTZE_STORAGE_PATH"); ok {
		opts.Storage.Path = v
	}
	if v, ok := get("KONGTZE_STORAGE_DSN"); ok {
		opts.Storage.DSN = v
	}
	if v, ok := get("KONGTZE_STORAGE_SECRET"); ok {
		opts.Storage.Secret = v
	}
	if v, ok := get("KONGTZE_REDIS_ADDR"); ok {
		opts.Storage.RedisAddr = v
	}
	if v, ok := get("KONGTZE_REDIS_PASSWORD"); ok {
		opts.Storage.RedisPassword = v
	}
	if v, ok := get("KONGTZE_REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KONGTZE_REDIS_DB %q: %w", v, err)
		}
		opts.Storage.RedisDB = n
	}
	if v, ok := get("KONGTZE_CA_FILE"); ok {
		opts.TLS.CAFile = v
	}
	if v, ok := get("KONGTZE_CERT_FILE"); ok {
		opts.TLS.CertFile = v
	}
	if v, ok := get("KONGTZE_KEY_FILE"); ok {
		opts.TLS.KeyFile = v
	}
	if v, ok := get("KONGTZE_METRICS_ADDR"); ok {
		opts.MetricsAddr = v
	}
	return nil
}
