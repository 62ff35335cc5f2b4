package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Import        Import        `yaml:"import"`
	Scoring       Scoring       `yaml:"scoring"`
	Alerts        Alerts        `yaml:"alerts"`
	Digest        Digest        `yaml:"digest"`
	Notifications Notifications `yaml:"notifications"`
	Output        Output        `yaml:"output"`
	Logging       Logging       `yaml:"logging"`
}

type Import struct {
	// SourcePath is a JSON file or a directory of *.json files holding
	// cached SAM.gov opportunity documents.
	SourcePath string `yaml:"source_path"`
	ChunkSize  int    `yaml:"chunk_size"`
}

type Scoring struct {
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	MaxTokens    int    `yaml:"max_tokens"`
	PageSize     int    `yaml:"page_size"`
	Capabilities string `yaml:"capabilities"`
}

type Alerts struct {
	Enabled        bool   `yaml:"enabled"`
	ScoreThreshold int    `yaml:"score_threshold"`
	LookbackHours  int    `yaml:"lookback_hours"`
	Cron           string `yaml:"cron"`
	RecipientEmail string `yaml:"recipient_email"`
}

type Digest struct {
	Enabled        bool   `yaml:"enabled"`
	Cron           string `yaml:"cron"`
	RecipientEmail string `yaml:"recipient_email"`
}

type Notifications struct {
	Webhook Webhook `yaml:"webhook"`
	SMTP    SMTP    `yaml:"smtp"`
}

type Webhook struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type SMTP struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	From        string `yaml:"from"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	JSON  bool `yaml:"json"`
	Debug bool `yaml:"debug"`
}

// ConfigDir returns the XDG config directory for fedscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "fedscout")
}

// DataDir returns the XDG data directory for fedscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "fedscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/fedscout/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'fedscout init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Import: Import{
			SourcePath: "./data/sam-gov",
			ChunkSize:  50,
		},
		Scoring: Scoring{
			BaseURL:      "https://api.anthropic.com",
			Model:        "claude-3-5-sonnet-20241022",
			APIKeyEnv:    "ANTHROPIC_API_KEY",
			MaxTokens:    2048,
			PageSize:     50,
			Capabilities: "Government contracting experience with cloud infrastructure, cybersecurity, and data analytics",
		},
		Alerts: Alerts{
			Enabled:        true,
			ScoreThreshold: 80,
			LookbackHours:  24,
			Cron:           "0 8 * * 1-5",
		},
		Digest: Digest{
			Enabled: true,
			Cron:    "0 9 * * 1",
		},
		Notifications: Notifications{
			SMTP: SMTP{
				Port:        587,
				UsernameEnv: "SMTP_USERNAME",
				PasswordEnv: "SMTP_PASSWORD",
			},
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
