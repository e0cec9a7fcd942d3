package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all bot configuration
type Config struct {
	Nick       string         `yaml:"nick" toml:"nick" validate:"required"`
	Debug      bool           `yaml:"debug" toml:"debug"`
	StatusAddr string         `yaml:"status_addr" toml:"status_addr"`
	Servers    []ServerConfig `yaml:"servers" toml:"servers" validate:"required,min=1,dive"`
}

// ServerConfig describes one server connection
type ServerConfig struct {
	Name       string   `yaml:"name" toml:"name" validate:"required"`
	Host       string   `yaml:"host" toml:"host" validate:"required"`
	Port       int      `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	TLS        bool     `yaml:"tls" toml:"tls"`
	SkipVerify bool     `yaml:"skip_verify" toml:"skip_verify"`
	Owner      string   `yaml:"owner" toml:"owner"`
	NickServ   string   `yaml:"nickserv" toml:"nickserv"`
	Password   string   `yaml:"password" toml:"password"`
	Channels   []string `yaml:"channels" toml:"channels"`

	// Outbound lines per second and burst size. A negative rate disables throttling.
	SendRate  float64 `yaml:"send_rate" toml:"send_rate"`
	SendBurst int     `yaml:"send_burst" toml:"send_burst" validate:"min=0"`

	ResyncInterval Duration `yaml:"resync_interval" toml:"resync_interval"`
	ReconnectDelay Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration is a time.Duration written as "30s" or "10m" in config files
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

var validate = validator.New()

// Load reads and parses a YAML or TOML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes configuration data. ext selects the format: ".toml" for TOML,
// anything else is treated as YAML
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.setDefaults()

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Port == 0 {
			if s.TLS {
				s.Port = 6697
			} else {
				s.Port = 6667
			}
		}
		if s.SendRate == 0 {
			s.SendRate = 2
		}
		if s.SendBurst == 0 {
			s.SendBurst = 4
		}
		if s.ReconnectDelay == 0 {
			s.ReconnectDelay = Duration(30 * time.Second)
		}
	}
}

// applyEnvOverrides lets IRCBOT_* variables override file settings
func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("IRCBOT_NICK"); ok && v != "" {
		c.Nick = v
	}
	if v, ok := os.LookupEnv("IRCBOT_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v, ok := os.LookupEnv("IRCBOT_STATUS_ADDR"); ok {
		c.StatusAddr = v
	}
}
