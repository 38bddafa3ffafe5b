package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the hitbox configuration
type Config struct {
	// IgnoreCertificateHosts lists hostnames whose TLS certificates are not
	// verified. Matching is exact, no wildcards.
	IgnoreCertificateHosts []string `json:"ignoreCertificateHosts,omitempty"`
	FollowRedirects        *bool    `json:"followRedirects,omitempty"`
	MaxRedirects           int      `json:"maxRedirects,omitempty"`
	Proxy                  string   `json:"proxy,omitempty"`
	Database               string   `json:"database,omitempty"` // sqlite connection string
	DefaultProfile         string   `json:"defaultProfile,omitempty"`
	Verbose                *bool    `json:"verbose,omitempty"`
	NoColor                *bool    `json:"noColor,omitempty"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetMaxRedirects returns the redirect limit, defaulting to DefaultMaxRedirects
func (c *Config) GetMaxRedirects() int {
	if c.MaxRedirects <= 0 {
		return DefaultMaxRedirects
	}
	return c.MaxRedirects
}

// GetDatabase returns the database connection string. An empty value falls
// back to the per-user cache location.
func (c *Config) GetDatabase() string {
	if c.Database != "" {
		return c.Database
	}
	return DefaultDatabase()
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitbox.config.json",
	"hitbox.config.json",
	".hitboxrc",
	".hitboxrc.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Database != "" {
		result.Database = other.Database
	}
	if other.DefaultProfile != "" {
		result.DefaultProfile = other.DefaultProfile
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Hosts accumulate; a host listed by either side is trusted
	if len(other.IgnoreCertificateHosts) > 0 {
		seen := make(map[string]struct{}, len(result.IgnoreCertificateHosts))
		hosts := append([]string{}, result.IgnoreCertificateHosts...)
		for _, h := range hosts {
			seen[h] = struct{}{}
		}
		for _, h := range other.IgnoreCertificateHosts {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				hosts = append(hosts, h)
			}
		}
		result.IgnoreCertificateHosts = hosts
	}

	return &result
}

// ParseHosts splits a comma separated host list, as used by
// HITBOX_IGNORE_CERTIFICATE_HOSTS.
func ParseHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
