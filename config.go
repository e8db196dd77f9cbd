package noteshot

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all NoteShot configuration.
type Config struct {
	DBPath    string        `yaml:"db_path"`
	Listen    string        `yaml:"listen"`
	PublicURL string        `yaml:"public_url"`
	Intake    IntakeConfig  `yaml:"intake"`
	Browser   BrowserConfig `yaml:"browser"`
	Store     StoreConfig   `yaml:"store"`
}

// IntakeConfig controls submissions to the Remote Intake.
type IntakeConfig struct {
	// URL is the intake base; POST <URL>/note. Default: PublicURL.
	URL string `yaml:"url"`
	// Disabled keeps every capture local-only.
	Disabled         bool          `yaml:"disabled"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// BrowserConfig controls the Chrome used for capture and viewer tabs.
type BrowserConfig struct {
	// Disabled runs without Chrome: captures are unavailable and viewers
	// are in-memory surfaces.
	Disabled         bool          `yaml:"disabled"`
	RemoteURL        string        `yaml:"remote_url"`
	Headless         bool          `yaml:"headless"`
	Bin              string        `yaml:"bin"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// StoreConfig controls the local note store.
type StoreConfig struct {
	// BlindWrites disables the version check and accepts lost updates
	// between concurrent writers.
	BlindWrites bool `yaml:"blind_writes"`
	MaxAttempts int  `yaml:"max_attempts"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "noteshot.db"
	}
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost" + c.Listen
		if !strings.HasPrefix(c.Listen, ":") {
			c.PublicURL = "http://" + c.Listen
		}
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if c.Intake.URL == "" {
		c.Intake.URL = c.PublicURL
	}
	if c.Intake.Timeout <= 0 {
		c.Intake.Timeout = 10 * time.Second
	}
	if c.Intake.BreakerThreshold <= 0 {
		c.Intake.BreakerThreshold = 3
	}
	if c.Intake.BreakerCooldown <= 0 {
		c.Intake.BreakerCooldown = 30 * time.Second
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Store.MaxAttempts <= 0 {
		c.Store.MaxAttempts = 8
	}
}

// ViewerURL is the default canonical viewer location.
func (c *Config) ViewerURL() string { return c.PublicURL + "/" }

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
