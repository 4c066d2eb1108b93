// Package config contains the definition of the application config structure
// and logic required to load it.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a field.
const (
	DefaultTokenCacheTTL = 600            // seconds
	DefaultMaxMediaBytes = 10 * 1024 * 1024
	DefaultAddress       = "127.0.0.1:8080"
)

// defaultAllowedMediaTypes is the MIME allow-list applied when none is
// configured. SVG is deliberately absent: inline scripts in uploaded SVGs
// execute in the site's origin.
var defaultAllowedMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"audio/mpeg",
	"video/mp4",
}

// Config represents the configuration of the application.
// It is loaded once at startup and treated as immutable afterwards.
type Config struct {
	// SiteURL is the canonical identity of the site this server publishes
	// to. Update and delete targets must share its origin.
	SiteURL string `yaml:"site_url"`

	// TokenEndpoint is the IndieAuth token-introspection endpoint.
	TokenEndpoint string `yaml:"token_endpoint"`

	// MediaEndpoint is the absolute media-endpoint URL advertised by q=config.
	MediaEndpoint string `yaml:"media_endpoint"`

	// TokenCacheTTL is the token verification cache lifetime in seconds.
	TokenCacheTTL int `yaml:"token_cache_ttl"`

	// EnforceScopes toggles per-operation scope checks. Disabling it is
	// only meant for local development against tokens without scopes.
	EnforceScopes bool `yaml:"enforce_scopes"`

	// EnableUpdates and EnableDeletes gate the corresponding Micropub actions.
	EnableUpdates bool `yaml:"enable_updates"`
	EnableDeletes bool `yaml:"enable_deletes"`

	// AllowedOrigins is the CORS allow-list. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMediaBytes is the maximum accepted upload size in bytes.
	MaxMediaBytes int64 `yaml:"max_media_bytes"`

	// AllowedMediaTypes is the MIME allow-list for media uploads.
	AllowedMediaTypes []string `yaml:"allowed_media_types"`

	// SyndicateTo lists the syndication targets advertised by q=config.
	SyndicateTo []SyndicateTarget `yaml:"syndicate_to"`

	// Address is the listen address of the HTTP server.
	Address string `yaml:"address"`

	// Storage configures the filesystem storage adapter.
	Storage Storage `yaml:"storage"`

	// CACertificatePath is an optional CA bundle for the introspection call.
	CACertificatePath string `yaml:"ca_certificate_path,omitempty"`

	// AllowPrivateIPs permits the token endpoint to resolve to private
	// addresses and to use plain HTTP. Local development only.
	AllowPrivateIPs bool `yaml:"allow_private_ips"`
}

// SyndicateTarget describes one syndication destination in the shape
// Micropub clients expect from q=syndicate-to.
type SyndicateTarget struct {
	UID  string `yaml:"uid" json:"uid"`
	Name string `yaml:"name" json:"name"`
}

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Storage contains the settings for the storage adapters.
type Storage struct {
	// Backend selects the content store: "fs" (default) or "sqlite".
	Backend string `yaml:"backend"`

	// ContentDir is the directory post documents are written to when
	// Backend is "fs".
	ContentDir string `yaml:"content_dir"`

	// DBPath is the SQLite database file used when Backend is "sqlite".
	DBPath string `yaml:"db_path"`

	// MediaDir is the directory uploaded files are written to.
	MediaDir string `yaml:"media_dir"`

	// MediaBaseURL is the absolute URL prefix media files are served under.
	MediaBaseURL string `yaml:"media_base_url"`

	// GitCommit enables a git commit per content mutation. ContentDir must
	// be inside a git repository.
	GitCommit bool `yaml:"git_commit"`
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("indiepub/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// applyDefaults fills in zero-valued fields that have defaults.
func applyDefaults(c *Config) {
	if c.TokenCacheTTL == 0 {
		c.TokenCacheTTL = DefaultTokenCacheTTL
	}
	if c.MaxMediaBytes == 0 {
		c.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if len(c.AllowedMediaTypes) == 0 {
		c.AllowedMediaTypes = defaultAllowedMediaTypes
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFS
	}
}

// Load reads the configuration from the given path, or from the default
// xdg location if path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return nil, fmt.Errorf("unable to fetch config path: %w", err)
		}
	}

	data, err := os.ReadFile(path) // #nosec G304 - config path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Config{EnforceScopes: true, EnableUpdates: true, EnableDeletes: true}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the invariants the rest of the server relies on.
func (c *Config) Validate() error {
	if err := requireAbsoluteURL("site_url", c.SiteURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("token_endpoint", c.TokenEndpoint); err != nil {
		return err
	}
	if c.MediaEndpoint != "" {
		if err := requireAbsoluteURL("media_endpoint", c.MediaEndpoint); err != nil {
			return err
		}
	}
	if c.Storage.MediaBaseURL != "" {
		if err := requireAbsoluteURL("storage.media_base_url", c.Storage.MediaBaseURL); err != nil {
			return err
		}
	}
	if c.MaxMediaBytes < 0 {
		return fmt.Errorf("max_media_bytes must not be negative")
	}
	switch c.Storage.Backend {
	case BackendFS, "":
	case BackendSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func requireAbsoluteURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, value)
	}
	return nil
}
