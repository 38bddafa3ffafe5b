package config

import (
	"os"
	"path/filepath"
	"slices"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// DefaultDatabase returns sqlite://<user cache dir>/hitbox/hitbox.sqlite,
// falling back to the working directory when no cache dir is known.
func DefaultDatabase() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "sqlite://hitbox.sqlite"
	}
	return "sqlite://" + filepath.Join(dir, "hitbox", "hitbox.sqlite")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		IgnoreCertificateHosts: nil,
		FollowRedirects:        boolPtr(true),
		MaxRedirects:           DefaultMaxRedirects,
		Proxy:                  "",
		Database:               "",
		DefaultProfile:         "",
		Verbose:                boolPtr(false),
		NoColor:                boolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return len(c.IgnoreCertificateHosts) == 0 &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.GetMaxRedirects() == defaults.GetMaxRedirects() &&
		c.Proxy == defaults.Proxy &&
		c.Database == defaults.Database &&
		c.DefaultProfile == defaults.DefaultProfile &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}

// TrustsHost reports whether certificate validation is skipped for host.
func (c *Config) TrustsHost(host string) bool {
	return slices.Contains(c.IgnoreCertificateHosts, host)
}
