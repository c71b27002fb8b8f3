package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds server configuration values.
type Config struct {
	ServerName        string        `mapstructure:"server_name" yaml:"server_name"`
	Host              string        `mapstructure:"host" yaml:"host"`
	WSPort            int           `mapstructure:"ws_port" yaml:"ws_port"`
	HTTPPort          int           `mapstructure:"http_port" yaml:"http_port"`
	DatabasePath      string        `mapstructure:"db_path" yaml:"db_path"`
	ExportPath        string        `mapstructure:"export_path" yaml:"export_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	SinkBuffer        int           `mapstructure:"sink_buffer" yaml:"sink_buffer"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessageRateLimit  int           `mapstructure:"message_rate_limit" yaml:"message_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerName:        "tensor",
		Host:              "127.0.0.1",
		WSPort:            8080,
		HTTPPort:          8081,
		DatabasePath:      "tensor.db",
		ExportPath:        ".",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		SinkBuffer:        64,
		MaxMessageBytes:   1 << 20,
		MessageRateLimit:  0,
	}
}

// WSAddr is the listen address of the WebSocket gateway.
func (c *Config) WSAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.WSPort))
}

// HTTPAddr is the listen address of the client listing gateway.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerName != "" {
		c.ServerName = other.ServerName
	}
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.WSPort != 0 {
		c.WSPort = other.WSPort
	}
	if other.HTTPPort != 0 {
		c.HTTPPort = other.HTTPPort
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ExportPath != "" {
		c.ExportPath = other.ExportPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.SinkBuffer != 0 {
		c.SinkBuffer = other.SinkBuffer
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessageRateLimit != 0 {
		c.MessageRateLimit = other.MessageRateLimit
	}
}
