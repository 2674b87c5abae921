// Package config loads server configuration from flags, environment
// variables, an optional .env file, and built-in defaults, in that order
// of precedence.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Server ServerConfig
	Auth   AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds data storage configuration. The database and search
// index both live under BasePath.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AuthConfig holds authentication configuration. AccessTokenKey is the
// 32-byte PASETO v4 symmetric key, filled in at startup once the key
// file has been loaded or generated.
type AuthConfig struct {
	AccessTokenKey       []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// LoadConfig resolves configuration with the precedence
// flags > environment > .env file > defaults.
func LoadConfig() (*Config, error) {
	var flags struct {
		env, logLevel, dataPath, serverName       string
		accessTokenDur, refreshTokenDur           string
		port, readTimeout, writeTimeout, idleWait string
		envFile                                   string
	}
	flag.StringVar(&flags.env, "env", "", "Environment (development, staging, production)")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&flags.dataPath, "data-path", "", "Base path for data storage")
	flag.StringVar(&flags.serverName, "server-name", "", "Name for the server")
	flag.StringVar(&flags.accessTokenDur, "access-token-duration", "", "Access token lifetime (e.g. 15m)")
	flag.StringVar(&flags.refreshTokenDur, "refresh-token-duration", "", "Refresh token lifetime (e.g. 720h)")
	flag.StringVar(&flags.port, "port", "", "HTTP listen port")
	flag.StringVar(&flags.readTimeout, "read-timeout", "", "HTTP read timeout")
	flag.StringVar(&flags.writeTimeout, "write-timeout", "", "HTTP write timeout")
	flag.StringVar(&flags.idleWait, "idle-timeout", "", "HTTP idle timeout")
	flag.StringVar(&flags.envFile, "env-file", ".env", "Path to .env file")
	flag.Parse()

	// A missing .env file is fine.
	_ = loadEnvFile(flags.envFile)

	cfg := &Config{
		App:    AppConfig{Environment: getConfigValue(flags.env, "ENV", "development")},
		Logger: LoggerConfig{Level: getConfigValue(flags.logLevel, "LOG_LEVEL", "info")},
		Data:   DataConfig{BasePath: getConfigValue(flags.dataPath, "DATA_PATH", "")},
		Server: ServerConfig{
			Name: getConfigValue(flags.serverName, "SERVER_NAME", "Bookhaven Server"),
			Port: getConfigValue(flags.port, "SERVER_PORT", "8080"),
		},
	}

	durations := []struct {
		dst          *time.Duration
		flagVal      string
		envKey       string
		defaultValue string
		what         string
	}{
		{&cfg.Auth.AccessTokenDuration, flags.accessTokenDur, "ACCESS_TOKEN_DURATION", "15m", "access token duration"},
		{&cfg.Auth.RefreshTokenDuration, flags.refreshTokenDur, "REFRESH_TOKEN_DURATION", "720h", "refresh token duration"},
		{&cfg.Server.ReadTimeout, flags.readTimeout, "SERVER_READ_TIMEOUT", "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, flags.writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", "write timeout"},
		{&cfg.Server.IdleTimeout, flags.idleWait, "SERVER_IDLE_TIMEOUT", "60s", "idle timeout"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagVal, d.envKey, d.defaultValue)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.what, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required values are present and well-formed.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}
	if !slices.Contains([]string{"development", "staging", "production"}, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logger.Level)) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}
	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}
	return nil
}

// expandPath resolves ~ and turns relative paths absolute. An empty
// path falls back to defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}
	if after, ok := strings.CutPrefix(path, "~/"); ok {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, after)
	}
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}
	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, "Bookhaven", "data"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value among flag, env var,
// and default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// loadEnvFile reads KEY=value lines into the process environment.
// Blank lines and # comments are skipped; existing environment
// variables win over file entries.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from a flag
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
