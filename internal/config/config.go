// Package config handles COSINT configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/cosint/config.yaml, /etc/cosint/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "cosint", "config.yaml"))
	}

	paths = append(paths, "/etc/cosint/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all COSINT configuration.
type Config struct {
	Listen    ListenConfig   `yaml:"listen"`
	OpenAI    OpenAIConfig   `yaml:"openai"`
	Congress  CongressConfig `yaml:"congress"`
	Civic     CivicConfig    `yaml:"civic"`
	Brave     BraveConfig    `yaml:"brave"`
	Auth      AuthConfig     `yaml:"auth"`
	Agent     AgentConfig    `yaml:"agent"`
	DataDir   string         `yaml:"data_dir"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OpenAIConfig defines the inference provider settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Default: https://api.openai.com/v1
	Model   string `yaml:"model"`    // Default: gpt-4o-mini
}

// CongressConfig defines Congress.gov API access. The same api.data.gov key
// also authenticates FEC requests.
type CongressConfig struct {
	APIKey string `yaml:"api_key"`
}

// CivicConfig defines Google Civic Information API access.
type CivicConfig struct {
	APIKey string `yaml:"api_key"`
}

// BraveConfig defines Brave Search API access.
type BraveConfig struct {
	APIKey string `yaml:"api_key"`
}

// AuthConfig defines bearer-token verification.
type AuthConfig struct {
	// IssuerURL is the token issuer base URL. The JWKS document is fetched
	// from <issuer>/auth/v1/.well-known/jwks.json.
	IssuerURL string `yaml:"issuer_url"`
	// JWKSTTLMinutes is how long a fetched key set is trusted before it is
	// re-fetched (default 60).
	JWKSTTLMinutes int `yaml:"jwks_ttl_minutes"`
}

// AgentConfig defines reasoning-loop behavior.
type AgentConfig struct {
	// MaxIterations bounds the think/tool/observe loop. When exhausted the
	// loop forces a final text response (default 15).
	MaxIterations int `yaml:"max_iterations"`
	// MessageRetention is the number of most-recent messages kept per
	// conversation after each completed turn (default 10).
	MessageRetention int `yaml:"message_retention"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8000},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Auth:      AuthConfig{JWKSTTLMinutes: 60},
		Agent:     AgentConfig{MaxIterations: 15, MessageRetention: 10},
		DataDir:   ".",
		LogFormat: "text",
	}
}
