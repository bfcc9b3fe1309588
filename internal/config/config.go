package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "triage.yml"

// Config models triage.yml.
type Config struct {
	Drafts struct {
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"drafts"`
	Scoring struct {
		Source  string        `yaml:"source"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"scoring"`
	Outcomes struct {
		Kafka KafkaConfig `yaml:"kafka"`
	} `yaml:"outcomes"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
		Stdout  bool `yaml:"stdout"`
	} `yaml:"telemetry"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// Enabled reports whether outcome ingestion is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// WebhookConfig subscribes a URL to audit events.
type WebhookConfig struct {
	ID     string   `yaml:"id"`
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

// Default returns the configuration used when triage.yml is absent.
func Default() *Config {
	var cfg Config
	cfg.Drafts.Debounce = 800 * time.Millisecond
	cfg.Scoring.Source = "table"
	cfg.Scoring.Timeout = 10 * time.Second
	cfg.Outcomes.Kafka.Topic = "lead-outcomes"
	cfg.Outcomes.Kafka.GroupID = "leadtriage"
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.Drafts.Debounce <= 0 {
		return fmt.Errorf("config.drafts.debounce must be positive")
	}
	switch c.Scoring.Source {
	case "table":
	case "http":
		u, err := url.Parse(c.Scoring.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config.scoring.url must be an absolute URL when source is http")
		}
	default:
		return fmt.Errorf("config.scoring.source must be 'table' or 'http', got %q", c.Scoring.Source)
	}
	if c.Outcomes.Kafka.Enabled() {
		if c.Outcomes.Kafka.Topic == "" {
			return fmt.Errorf("config.outcomes.kafka.topic is required when brokers are set")
		}
		if c.Outcomes.Kafka.GroupID == "" {
			return fmt.Errorf("config.outcomes.kafka.group_id is required when brokers are set")
		}
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be 'text' or 'json'")
	}
	seen := map[string]bool{}
	for i, wh := range c.Webhooks {
		if wh.ID == "" {
			return fmt.Errorf("config.webhooks[%d].id is required", i)
		}
		if seen[wh.ID] {
			return fmt.Errorf("config.webhooks has duplicate id %s", wh.ID)
		}
		seen[wh.ID] = true
		if wh.URL == "" {
			return fmt.Errorf("webhook %s has empty url", wh.ID)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerateDefault returns a commented starter triage.yml.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `drafts:
  debounce: 800ms

scoring:
  # table reads lead_scores written by the scorer; http queries it directly
  source: table
  url: ""
  timeout: 10s

outcomes:
  kafka:
    brokers: []
    topic: lead-outcomes
    group_id: leadtriage

server:
  addr: 127.0.0.1:8080
  base_path: /v0

auth:
  jwt_secret: ""

log:
  level: info
  format: text

telemetry:
  enabled: false
  stdout: false

webhooks: []
`
