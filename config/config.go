// Package config loads the API client configuration from the environment,
// an optional .env file and an optional YAML file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agentuity/go-apiclient/api"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Duration accepts extended units such as "1d" or "1w2d".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := str2duration.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(str2duration.String(time.Duration(d))), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the configuration surface of the client.
type Config struct {
	Host       string `env:"APICLIENT_HOST" yaml:"host"`
	HTTPSLogin bool   `env:"APICLIENT_HTTPS_LOGIN" envDefault:"true" yaml:"https_login"`
	HTTPSOnly  bool   `env:"APICLIENT_HTTPS_ONLY" yaml:"https_only"`

	LoginPath       string `env:"APICLIENT_LOGIN_PATH" envDefault:"/api/login" yaml:"login_path"`
	LogoutPath      string `env:"APICLIENT_LOGOUT_PATH" envDefault:"/api/logout" yaml:"logout_path"`
	CurrentUserPath string `env:"APICLIENT_CURRENT_USER_PATH" envDefault:"/api/me" yaml:"current_user_path"`

	HMACKey       string `env:"APICLIENT_HMAC_KEY" yaml:"hmac_key"`
	HMACSalt      string `env:"APICLIENT_HMAC_SALT" yaml:"hmac_salt"`
	SignWithNonce bool   `env:"APICLIENT_HMAC_NONCE" yaml:"hmac_nonce"`
	MobileKey     string `env:"APICLIENT_MOBILE_KEY" yaml:"mobile_key"`
	// Secret keys the cipher of the persisted credential.
	Secret string `env:"APICLIENT_SECRET" yaml:"secret"`

	Storage    string `env:"APICLIENT_STORAGE" envDefault:"file" yaml:"storage"`
	StorageDir string `env:"APICLIENT_STORAGE_DIR" yaml:"storage_dir"`
	RedisURL   string `env:"APICLIENT_REDIS_URL" yaml:"redis_url"`
	RedisKey   string `env:"APICLIENT_REDIS_PREFIX" envDefault:"apiclient" yaml:"redis_prefix"`

	CacheTTL       Duration `env:"APICLIENT_CACHE_TTL" envDefault:"5m" yaml:"cache_ttl"`
	RequestTimeout Duration `env:"APICLIENT_REQUEST_TIMEOUT" envDefault:"30s" yaml:"request_timeout"`

	AppName      string `env:"APICLIENT_APP_NAME" envDefault:"apiclient" yaml:"app_name"`
	Language     string `env:"APICLIENT_LANGUAGE" yaml:"language"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otlp_endpoint"`
}

// Load reads .env when present, then the environment, then the YAML file at
// path when path is not empty. Values in the file override the environment.
// The result is validated.
func Load(path string) (*Config, error) {
	// the .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing environment")
	}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", path)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, errors.Wrapf(err, "error parsing config file %s", path)
		}
	}
	if cfg.Storage == StorageFile && cfg.StorageDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(err, "error locating config directory")
		}
		cfg.StorageDir = filepath.Join(dir, cfg.AppName)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent options as api.ErrMissingParameters.
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.Wrap(api.ErrMissingParameters, "APICLIENT_HOST is required")
	case c.Secret == "":
		return errors.Wrap(api.ErrMissingParameters, "APICLIENT_SECRET is required")
	case c.LoginPath == "" || c.LogoutPath == "":
		return errors.Wrap(api.ErrMissingParameters, "login and logout paths are required")
	case c.SignWithNonce && c.HMACKey == "":
		return errors.Wrap(api.ErrMissingParameters, "APICLIENT_HMAC_NONCE requires APICLIENT_HMAC_KEY")
	}
	switch c.Storage {
	case StorageMemory:
	case StorageFile:
		if c.StorageDir == "" {
			return errors.Wrap(api.ErrMissingParameters, "APICLIENT_STORAGE_DIR is required for file storage")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.Wrap(api.ErrMissingParameters, "APICLIENT_REDIS_URL is required for redis storage")
		}
	default:
		return errors.Wrapf(api.ErrMissingParameters, "unknown storage %q", c.Storage)
	}
	return nil
}

// SignMode returns how request bodies are signed.
func (c *Config) SignMode() api.SignMode {
	switch {
	case c.HMACKey == "":
		return api.SignNone
	case c.SignWithNonce:
		return api.SignBodyWithNonce
	}
	return api.SignBody
}
