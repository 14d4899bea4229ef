// Package config loads settings for the us client and the usd backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "US"
	envConfigPath = "US_CONFIG"

	minSecretKeyLength = 32
)

var (
	ErrSecretKeyMissing     = errors.New("server.secret_key is required")
	ErrSecretKeyPlaceholder = errors.New("server.secret_key uses an insecure placeholder")
	ErrSecretKeyTooShort    = fmt.Errorf("server.secret_key must be at least %d characters", minSecretKeyLength)
	ErrInvalidPort          = errors.New("server.port must be a number between 1 and 65535")
	ErrBackendURLMissing    = errors.New("client.backend_url is required")
)

var insecureSecretPlaceholders = map[string]struct{}{
	"change_me_in_production":                    {},
	"changeme":                                   {},
	"secret":                                     {},
	"your-super-secret-key":                      {},
	"replace_with_at_least_32_random_characters": {},
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port      string        `mapstructure:"port"`
	DBPath    string        `mapstructure:"db_path"`
	SecretKey string        `mapstructure:"secret_key"`
	AnonKey   string        `mapstructure:"anon_key"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	PublicURL string        `mapstructure:"public_url"`
}

type ClientConfig struct {
	BackendURL  string        `mapstructure:"backend_url"`
	AnonKey     string        `mapstructure:"anon_key"`
	SessionPath string        `mapstructure:"session_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Language    string        `mapstructure:"language"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads defaults, then an optional YAML file, then US_* environment overrides.
// An explicit path (or US_CONFIG) must exist; the default location may be absent.
func Load(path string) (Config, error) {
	v := viper.New()

	baseDir := defaultBaseDir()
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.db_path", filepath.Join("data", "us.db"))
	v.SetDefault("server.secret_key", "")
	v.SetDefault("server.anon_key", "")
	v.SetDefault("server.token_ttl", "168h")
	v.SetDefault("server.public_url", "")
	v.SetDefault("client.backend_url", "http://localhost:8080")
	v.SetDefault("client.anon_key", "")
	v.SetDefault("client.session_path", filepath.Join(baseDir, "session.json"))
	v.SetDefault("client.timeout", "15s")
	v.SetDefault("client.language", "")
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")

	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(baseDir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func (c ServerConfig) Validate() error {
	if err := validateSecretKey(c.SecretKey); err != nil {
		return err
	}
	port, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || port < 1 || port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return ErrBackendURLMissing
	}
	return nil
}

func validateSecretKey(raw string) error {
	secret := strings.TrimSpace(raw)
	if secret == "" {
		return ErrSecretKeyMissing
	}
	if _, insecure := insecureSecretPlaceholders[strings.ToLower(secret)]; insecure {
		return ErrSecretKeyPlaceholder
	}
	if len(secret) < minSecretKeyLength {
		return ErrSecretKeyTooShort
	}
	return nil
}

func defaultBaseDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "us")
	}
	return filepath.Join(".", ".us")
}
