package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ServerOptions holds the configuration of the local development backend.
type ServerOptions struct {
	// Addr is the listening address (ip:port).
	Addr string `json:"addr"`

	// Secret signs access tokens.
	Secret string `json:"secret"`

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration `json:"-"`

	// CertFile and KeyFile enable HTTPS when both are set.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// ClientCAFile verifies client certificates when given.
	ClientCAFile string `json:"client_ca_file"`

	LogLevel string `json:"log_level"`

	// Demo seeds a parent and a student account on start.
	Demo bool `json:"demo"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

type serverFileOptions struct {
	ServerOptions
	TokenTTL string `json:"token_ttl"`
}

// ParseServer resolves the backend options from flags, the JSON config file
// and environment variables, in the same precedence as Parse.
func ParseServer() (*ServerOptions, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parseServer(flag.CommandLine, os.Args[1:], os.LookupEnv)
}

func parseServer(fs *flag.FlagSet, args []string, lookupEnv func(string) (string, bool)) (*ServerOptions, error) {
	opts := &ServerOptions{}

	fs.StringVar(&opts.Addr, "a", "localhost:8000", "run on ip:port server")
	fs.StringVar(&opts.Secret, "secret", "kongtze-dev-secret", "token signing secret")
	fs.DurationVar(&opts.TokenTTL, "token-ttl", 7*24*time.Hour, "access token lifetime")
	fs.StringVar(&opts.CertFile, "tls-cert", "", "path to server cert")
	fs.StringVar(&opts.KeyFile, "tls-key", "", "path to server key")
	fs.StringVar(&opts.ClientCAFile, "client-ca", "", "path to CA used to verify client certs")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&opts.Demo, "demo", false, "seed demo accounts")
	fs.StringVar(&opts.Config, "config", "server.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "server.json", "path to config file (shorthand)")

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
			var fromFile serverFileOptions
			if err := json.Unmarshal(data, &fromFile); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
			str := func(dst *string, src, flagName string) {
				if src != "" && !setFlags[flagName] {
					*dst = src
				}
			}
			str(&opts.Addr, fromFile.Addr, "a")
			str(&opts.Secret, fromFile.Secret, "secret")
			str(&opts.CertFile, fromFile.CertFile, "tls-cert")
			str(&opts.KeyFile, fromFile.KeyFile, "tls-key")
			str(&opts.ClientCAFile, fromFile.ClientCAFile, "client-ca")
			str(&opts.LogLevel, fromFile.LogLevel, "log-level")
			if fromFile.Demo && !setFlags["demo"] {
				opts.Demo = true
			}
			if fromFile.TokenTTL != "" && !setFlags["token-ttl"] {
				d, err := time.ParseDuration(fromFile.TokenTTL)
				if err != nil {
					return nil, fmt.Errorf("parse config file token_ttl: %w", err)
				}
				opts.TokenTTL = d
			}
		}
	}

	if v, ok := lookupEnv("SERVER_ADDRESS"); ok && v != "" {
		opts.Addr = v
	}
	if v, ok := lookupEnv("KONGTZE_SECRET"); ok && v != "" {
		opts.Secret = v
	}
	if v, ok := lookupEnv("KONGTZE_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KONGTZE_TOKEN_TTL %q: %w", v, err)
		}
		opts.TokenTTL = d
	}
	if v, ok := lookupEnv("KONGTZE_LOG_LEVEL"); ok && v != "" {
		opts.LogLevel = v
	}

	if (opts.CertFile == "") != (opts.KeyFile == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return opts, nil
}
