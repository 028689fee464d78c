package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/autoback/internal/protocol"
)

// DefaultCoordinatorPort is the port the coordinator listens on
const DefaultCoordinatorPort = 8172

// AgentConfig for the host reporting agent
type AgentConfig struct {
	LogPath         string        `yaml:"log_path"` // shared log, usually on a network share
	CoordinatorHost string        `yaml:"coordinator_host"`
	CoordinatorPort int           `yaml:"coordinator_port"`
	Hostname        string        `yaml:"hostname"`
	Encoding        string        `yaml:"encoding"`
	EOFMarker       string        `yaml:"eof_marker"`
	UTC             *bool         `yaml:"utc"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"` // 0 leaves it to the OS
	SourceAddr      string        `yaml:"source_addr"`
	Resolver        string        `yaml:"resolver"` // DNS server host:port, empty for system resolver
	DiagLog         string        `yaml:"diag_log"`
}

// CoordinatorConfig for the result listener
type CoordinatorConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	Encoding        string        `yaml:"encoding"`
	EOFMarker       string        `yaml:"eof_marker"`
	ReceiveTimeout  time.Duration `yaml:"receive_timeout"`
	MaxMessageBytes int           `yaml:"max_message_bytes"`
	DiagLog         string        `yaml:"diag_log"`
}

// LoadAgentConfig loads agent config from YAML file with env overrides
func LoadAgentConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	// Env overrides
	if p := os.Getenv("AUTOBACK_LOG_PATH"); p != "" {
		cfg.LogPath = p
	}
	if host := os.Getenv("AUTOBACK_COORDINATOR"); host != "" {
		cfg.CoordinatorHost = host
	}
	if port := os.Getenv("AUTOBACK_COORDINATOR_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("AUTOBACK_COORDINATOR_PORT: %w", err)
		}
		cfg.CoordinatorPort = n
	}
	if hostname := os.Getenv("AUTOBACK_HOSTNAME"); hostname != "" {
		cfg.Hostname = hostname
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AgentConfig) applyDefaults() {
	if c.CoordinatorPort == 0 {
		c.CoordinatorPort = DefaultCoordinatorPort
	}
	if c.EOFMarker == "" {
		c.EOFMarker = protocol.DefaultEOFMarker
	}
	if c.UTC == nil {
		utc := true
		c.UTC = &utc
	}
}

// Validate checks the fields the pipeline cannot run without
func (c *AgentConfig) Validate() error {
	if c.LogPath == "" {
		return errors.New("log_path is required")
	}
	if c.CoordinatorHost == "" {
		return errors.New("coordinator_host is required")
	}
	if c.CoordinatorPort < 1 || c.CoordinatorPort > 65535 {
		return fmt.Errorf("coordinator_port %d out of range", c.CoordinatorPort)
	}
	if _, err := protocol.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.ConnectTimeout < 0 {
		return errors.New("connect_timeout must not be negative")
	}
	return nil
}

// Location returns the zone timestamps are captured in
func (c *AgentConfig) Location() *time.Location {
	if c.UTC != nil && !*c.UTC {
		return time.Local
	}
	return time.UTC
}

// LoadCoordinatorConfig loads coordinator config from YAML file with env overrides
func LoadCoordinatorConfig(path string) (*CoordinatorConfig, error) {
	var cfg CoordinatorConfig
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	if addr := os.Getenv("AUTOBACK_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if p := os.Getenv("AUTOBACK_DB_PATH"); p != "" {
		cfg.DBPath = p
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *CoordinatorConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = fmt.Sprintf(":%d", DefaultCoordinatorPort)
	}
	if c.EOFMarker == "" {
		c.EOFMarker = protocol.DefaultEOFMarker
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = 20 * time.Second
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1024
	}
}

// Validate checks the fields the listener cannot run without
func (c *CoordinatorConfig) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if _, err := protocol.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.MaxMessageBytes < 0 {
		return errors.New("max_message_bytes must not be negative")
	}
	return nil
}

// readYAML decodes path into out. An empty path skips the file so that
// env-only setups work.
func readYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
