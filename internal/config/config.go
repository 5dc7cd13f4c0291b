package config

import "time"

// Config holds server configuration values.
type Config struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	AuthFile        string        `mapstructure:"auth_file" yaml:"auth_file"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	AdminAddr       string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OutboundQueue   int           `mapstructure:"outbound_queue" yaml:"outbound_queue"`
	MaxLine         int           `mapstructure:"max_line" yaml:"max_line"`
	CommandInterval time.Duration `mapstructure:"command_interval" yaml:"command_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:            0,
		LogLevel:        "info",
		WriteTimeout:    5 * time.Second,
		OutboundQueue:   32,
		MaxLine:         64 * 1024,
		ShutdownTimeout: 5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.AuthFile != "" {
		c.AuthFile = other.AuthFile
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.OutboundQueue != 0 {
		c.OutboundQueue = other.OutboundQueue
	}
	if other.MaxLine != 0 {
		c.MaxLine = other.MaxLine
	}
	if other.CommandInterval != 0 {
		c.CommandInterval = other.CommandInterval
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// ClientConfig holds chat client settings.
type ClientConfig struct {
	Name       string        `mapstructure:"name" yaml:"name"`
	AuthFile   string        `mapstructure:"auth_file" yaml:"auth_file"`
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	LogLevel   string        `mapstructure:"log_level" yaml:"log_level"`
	LeaveGrace time.Duration `mapstructure:"leave_grace" yaml:"leave_grace"`
}

// DefaultClient returns client defaults.
func DefaultClient() ClientConfig {
	return ClientConfig{
		Host:       "localhost",
		LogLevel:   "error",
		LeaveGrace: 300 * time.Millisecond,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *ClientConfig) UpdateFrom(other ClientConfig) {
	if other.Name != "" {
		c.Name = other.Name
	}
	if other.AuthFile != "" {
		c.AuthFile = other.AuthFile
	}
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LeaveGrace != 0 {
		c.LeaveGrace = other.LeaveGrace
	}
}
