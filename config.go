package gwsvc

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by LoadConfig
const (
	// EnvConfigPath overrides the config file location
	EnvConfigPath = "GWSVC_CONFIG"
	// EnvProfile selects the gateway profile
	EnvProfile = "GWSVC_PROFILE"
	// EnvLaunchctl overrides the launchctl binary path
	EnvLaunchctl = "GWSVC_LAUNCHCTL"
	// EnvSystemctl overrides the systemctl binary path
	EnvSystemctl = "GWSVC_SYSTEMCTL"
	// EnvPM2 overrides the pm2 binary path
	EnvPM2 = "GWSVC_PM2"
	// EnvSchtasks overrides the schtasks binary path
	EnvSchtasks = "GWSVC_SCHTASKS"
)

// Naming building blocks shared by every backend. A single derivation
// (Config.ServiceName and friends) guarantees that an install performed
// via one backend and a query performed via another target the same
// logical unit.
const (
	// serviceBaseName is the stem of the logical unit name
	serviceBaseName = "gwsvc-gateway"

	// DefaultLabelPrefix is the reverse-DNS prefix for launchd labels
	DefaultLabelPrefix = "com.axondata.gwsvc"

	// taskBaseName is the Scheduled Tasks name stem
	taskBaseName = "GwsvcGateway"

	// DefaultDescription is used when neither config nor spec provide one
	DefaultDescription = "gwsvc gateway"
)

// Config carries the profile-scoped settings every backend shares.
type Config struct {
	// Profile isolates parallel gateway installs; empty selects the
	// default profile
	Profile string `yaml:"profile"`

	// LabelPrefix overrides the reverse-DNS prefix for launchd labels
	LabelPrefix string `yaml:"label_prefix"`

	// Description is the human-readable unit description
	Description string `yaml:"description"`

	// Tool path overrides; empty means the default name resolved
	// through PATH
	LaunchctlPath string `yaml:"launchctl_path"`
	SystemctlPath string `yaml:"systemctl_path"`
	PM2Path       string `yaml:"pm2_path"`
	SchtasksPath  string `yaml:"schtasks_path"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		LabelPrefix:   DefaultLabelPrefix,
		Description:   DefaultDescription,
		LaunchctlPath: DefaultLaunchctlPath,
		SystemctlPath: DefaultSystemctlPath,
		PM2Path:       DefaultPM2Path,
		SchtasksPath:  DefaultSchtasksPath,
	}
}

// DefaultConfigPath returns the default config file location
// (~/.gwsvc/config.yaml), or empty when no home directory is known.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gwsvc", "config.yaml")
}

// LoadConfig builds the effective configuration in precedence order:
// defaults, overlaid by the optional YAML config file, overlaid by
// GWSVC_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays settings from a YAML file. A missing file is fine;
// only unreadable or malformed content is an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("gwsvc: reading config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("gwsvc: parsing config %s: %w", path, err)
	}
	c.merge(&file)
	return nil
}

// merge overlays non-empty fields from other.
func (c *Config) merge(other *Config) {
	if other.Profile != "" {
		c.Profile = other.Profile
	}
	if other.LabelPrefix != "" {
		c.LabelPrefix = other.LabelPrefix
	}
	if other.Description != "" {
		c.Description = other.Description
	}
	if other.LaunchctlPath != "" {
		c.LaunchctlPath = other.LaunchctlPath
	}
	if other.SystemctlPath != "" {
		c.SystemctlPath = other.SystemctlPath
	}
	if other.PM2Path != "" {
		c.PM2Path = other.PM2Path
	}
	if other.SchtasksPath != "" {
		c.SchtasksPath = other.SchtasksPath
	}
}

// applyEnvOverrides overlays GWSVC_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvProfile); v != "" {
		c.Profile = v
	}
	if v := os.Getenv(EnvLaunchctl); v != "" {
		c.LaunchctlPath = v
	}
	if v := os.Getenv(EnvSystemctl); v != "" {
		c.SystemctlPath = v
	}
	if v := os.Getenv(EnvPM2); v != "" {
		c.PM2Path = v
	}
	if v := os.Getenv(EnvSchtasks); v != "" {
		c.SchtasksPath = v
	}
}

// Validate checks the configuration for values that would produce
// invalid unit names.
func (c *Config) Validate() error {
	if c.Profile != "" && !validProfile(c.Profile) {
		return fmt.Errorf("gwsvc: invalid profile %q: only lowercase letters, digits, and '-' are allowed", c.Profile)
	}
	if c.LabelPrefix == "" {
		return fmt.Errorf("gwsvc: label prefix must not be empty")
	}
	return nil
}

// validProfile reports whether p is safe to embed in unit names.
func validProfile(p string) bool {
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// ServiceName derives the logical unit name every backend targets:
// "gwsvc-gateway" for the default profile, "gwsvc-gateway-<profile>"
// otherwise. systemd units and PM2 process names use it directly.
func (c *Config) ServiceName() string {
	if c.Profile == "" {
		return serviceBaseName
	}
	return serviceBaseName + "-" + c.Profile
}

// UnitName returns the systemd user unit file name, including suffix.
func (c *Config) UnitName() string {
	return c.ServiceName() + ".service"
}

// LaunchdLabel derives the launchd job label from the label prefix and
// profile, e.g. "com.axondata.gwsvc.gateway.work".
func (c *Config) LaunchdLabel() string {
	prefix := c.LabelPrefix
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}
	label := prefix + ".gateway"
	if c.Profile != "" {
		label += "." + c.Profile
	}
	return label
}

// TaskName derives the Windows scheduled task name, e.g.
// "GwsvcGateway-work".
func (c *Config) TaskName() string {
	if c.Profile == "" {
		return taskBaseName
	}
	return taskBaseName + "-" + c.Profile
}
