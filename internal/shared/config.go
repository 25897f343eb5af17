package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and overridden by the environment.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Tokens      TokensConfig      `toml:"tokens"`
	API         APIConfig         `toml:"api"`
	Credentials CredentialsConfig `toml:"credentials"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `toml:"host" env:"SERVER_HOST"`
	Port        int    `toml:"port" env:"PORT"`
	FrontendURL string `toml:"frontend_url" env:"FRONTEND_URL"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL is the address the CLI uses to reach a locally running server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// SessionConfig controls the session cookie and where session data lives.
//
// Backend is either "sqlite" (sessions table in the configured database) or "memory".
type SessionConfig struct {
	Secret       string `toml:"secret" env:"SESSION_SECRET"`
	TTLSeconds   int    `toml:"ttl_seconds" env:"SESSION_TTL_SECONDS"`
	Backend      string `toml:"backend" env:"SESSION_BACKEND"`
	CookieName   string `toml:"cookie_name" env:"SESSION_COOKIE_NAME"`
	SecureCookie bool   `toml:"secure_cookie" env:"SESSION_SECURE_COOKIE"`
}

// TTL returns the session lifetime, falling back to one hour.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// TokensConfig controls the token lifecycle.
type TokensConfig struct {
	RefreshSkewSeconds int `toml:"refresh_skew_seconds" env:"REFRESH_SKEW_SECONDS"`
}

// RefreshSkew returns the window before expiry in which tokens are refreshed.
func (t TokensConfig) RefreshSkew() time.Duration {
	if t.RefreshSkewSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(t.RefreshSkewSeconds) * time.Second
}

// APIConfig contains settings for outbound provider data calls.
type APIConfig struct {
	RateLimit      float64 `toml:"rate_limit" env:"API_RATE_LIMIT"`
	TimeoutSeconds int     `toml:"timeout_seconds" env:"API_TIMEOUT_SECONDS"`
}

// Timeout returns the outbound HTTP client timeout.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// CredentialsConfig contains OAuth client credentials per provider.
type CredentialsConfig struct {
	Google   ProviderConfig `toml:"google" envPrefix:"GOOGLE_"`
	Spotify  ProviderConfig `toml:"spotify" envPrefix:"SPOTIFY_"`
	Facebook ProviderConfig `toml:"facebook" envPrefix:"FACEBOOK_"`
}

// ProviderConfig contains OAuth client credentials for a single provider.
type ProviderConfig struct {
	Enabled      bool   `toml:"enabled" env:"ENABLED"`
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile writes the embedded example config to path, refusing to overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes the config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv loads a dotenv file (if present) into the process environment and then applies environment overrides to
// the config.
//
// Variables already set in the environment win over the dotenv file.
func (c *Config) LoadEnv(dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate reports configuration that would prevent the server from running.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Session.Secret) == "" {
		errs = append(errs, fmt.Errorf("%w: session.secret is required", ErrInvalidConfig))
	}

	switch c.Session.Backend {
	case "", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port))
	}

	providers := map[string]ProviderConfig{
		"google":   c.Credentials.Google,
		"spotify":  c.Credentials.Spotify,
		"facebook": c.Credentials.Facebook,
	}
	for _, name := range []string{"google", "spotify", "facebook"} {
		p := providers[name]
		if !p.Enabled {
			continue
		}
		if p.ClientID == "" || p.ClientSecret == "" || p.RedirectURI == "" {
			errs = append(errs, fmt.Errorf("%w: %s requires client_id, client_secret and redirect_uri", ErrMissingCredentials, name))
		}
	}

	return errors.Join(errs...)
}

// Level parses the configured log level, defaulting to info.
func (s ServerConfig) Level() log.Level {
	if s.LogLevel == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
