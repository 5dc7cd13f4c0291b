package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix     = "WIRECHAT"
	envConfigPath = "WIRECHAT_CONFIG"
)

// Load builds server configuration from defaults, an optional config file and env vars.
// Precedence: defaults < config file < env vars < caller overrides (UpdateFrom).
// The returned path is "" when no config file was used.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := newViper()
	v.SetDefault("port", cfg.Port)
	v.SetDefault("auth_file", cfg.AuthFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("admin_addr", cfg.AdminAddr)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("outbound_queue", cfg.OutboundQueue)
	v.SetDefault("max_line", cfg.MaxLine)
	v.SetDefault("command_interval", cfg.CommandInterval)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)

	configPath, err := readConfig(v, logger, explicitPath, cfg)
	if err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, configPath, nil
}

// LoadClient builds client configuration the same way as Load.
func LoadClient(logger *zerolog.Logger, explicitPath string) (ClientConfig, string, error) {
	cfg := DefaultClient()

	v := newViper()
	v.SetDefault("name", cfg.Name)
	v.SetDefault("auth_file", cfg.AuthFile)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("leave_grace", cfg.LeaveGrace)

	configPath, err := readConfig(v, logger, explicitPath, cfg)
	if err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, configPath, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig reads the config file when one was requested. A requested file that
// does not exist yet is created with defaults.
func readConfig(v *viper.Viper, logger *zerolog.Logger, explicitPath string, defaults any) (string, error) {
	configPath := resolveConfigPath(explicitPath)
	if configPath == "" {
		return "", nil
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return configPath, fmt.Errorf("read config: %w", err)
		}
		if writeErr := writeDefaultConfig(configPath, defaults); writeErr != nil {
			if logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			}
			return configPath, nil
		}
		if logger != nil {
			logger.Info().Str("path", configPath).Msg("created default config")
		}
		// try reading again now that it was just written
		if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
			logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
		}
	}
	return configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	return os.Getenv(envConfigPath)
}

func writeDefaultConfig(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
