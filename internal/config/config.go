package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/catalyst/userkey/internal/core"
	"github.com/catalyst/userkey/internal/guard"
	"github.com/catalyst/userkey/internal/validation"
)

type Config struct {
	// Disabled turns the login-URL web service off without removing
	// the configuration. Redemption of already-issued keys still works.
	Disabled bool `yaml:"disabled"`

	// BaseURL is the absolute root under which /login and /logout are
	// served. Login URLs are built as <baseurl>/login?key=<token>.
	BaseURL string `yaml:"baseurl"`

	// MappingField selects the subject attribute used to resolve
	// payloads (username, email or idnumber). Defaults to email.
	MappingField core.MappingField `yaml:"mappingfield"`

	// KeyLifetime is the key validity in seconds. Defaults to 60.
	KeyLifetime int `yaml:"keylifetime"`

	// IPRestriction pins issued keys to the requesting address.
	IPRestriction bool `yaml:"iprestriction"`

	// IPWhitelist is a semicolon-delimited list of CIDR ranges that may
	// redeem any key regardless of its IP restriction.
	IPWhitelist string `yaml:"ipwhitelist"`

	// RedirectURL overrides the post-logout destination for sessions
	// established via key redemption.
	RedirectURL string `yaml:"redirecturl"`

	// SSOURL, when set, is where anonymous users are sent before the
	// login UI, unless they requested to skip SSO.
	SSOURL string `yaml:"ssourl"`

	CreateUser           bool `yaml:"createuser"`
	UpdateUser           bool `yaml:"updateuser"`
	AllowDuplicateEmails bool `yaml:"allowduplicateemails"`

	// Guard is an optional boolean expression evaluated against each
	// login-URL payload, e.g. `email endsWith "@example.com"`.
	Guard string `yaml:"guard"`

	Store StoreConfig `yaml:"store"`
	Audit AuditConfig `yaml:"audit"`

	// APISecret signs and verifies the bearer tokens callers present
	// to the web service API.
	APISecret string `yaml:"apisecret"`

	// Derived at validation time.
	Whitelist     []netip.Prefix `yaml:"-"`
	CompiledGuard *guard.Guard   `yaml:"-"`
}

// StoreConfig selects the key store backend.
type StoreConfig struct {
	// Type is "memory" or "sqlite".
	Type string `yaml:"type"`

	// Path is the SQLite database file. Empty means in-memory SQLite.
	Path string `yaml:"path"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// Lifetime returns the configured key lifetime as a duration.
func (c *Config) Lifetime() time.Duration {
	if c.KeyLifetime > 0 {
		return time.Duration(c.KeyLifetime) * time.Second
	}
	return core.DefaultKeyLifetime
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

// Validate applies defaults and rejects values that must never reach
// the runtime core: malformed URLs, non-positive lifetimes, unknown
// mapping fields, unparseable whitelists and guard expressions.
func (c *Config) Validate() error {
	if c.MappingField == "" {
		c.MappingField = core.MapByEmail
	}
	if !core.KnownMappingField(c.MappingField) {
		return fmt.Errorf("unknown mappingfield %q (expected username, email or idnumber)", c.MappingField)
	}

	// zero falls back to the default lifetime downstream
	if c.KeyLifetime < 0 {
		return fmt.Errorf("keylifetime must not be negative, got %d", c.KeyLifetime)
	}

	if c.BaseURL != "" {
		if err := validation.ValidateAbsoluteURL("baseurl", c.BaseURL); err != nil {
			return err
		}
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
	if c.RedirectURL != "" {
		if err := validation.ValidateAbsoluteURL("redirecturl", c.RedirectURL); err != nil {
			return err
		}
	}
	if c.SSOURL != "" {
		if err := validation.ValidateAbsoluteURL("ssourl", c.SSOURL); err != nil {
			return err
		}
	}

	whitelist, err := validation.ParseWhitelist(c.IPWhitelist)
	if err != nil {
		return err
	}
	c.Whitelist = whitelist

	compiled, err := guard.Compile(c.Guard)
	if err != nil {
		return err
	}
	c.CompiledGuard = compiled

	switch c.Store.Type {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store type %q (expected memory or sqlite)", c.Store.Type)
	}

	switch c.Audit.Type {
	case "", "memory", "file":
	default:
		return fmt.Errorf("unknown audit type %q (expected memory or file)", c.Audit.Type)
	}
	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit type 'file' requires a path")
	}

	return nil
}
