package icelift

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig holds the source object store configuration. The source
// handle is built solely from these explicit static values and never
// consults shared credential files, profiles, or ambient environment
// variables.
type SourceConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key"`
	SecretAccessKey string `yaml:"secret_key"`
	Region          string `yaml:"region"`
}

// DestinationConfig holds the destination object store configuration.
// Credentials are resolved from the named profile's shared configuration;
// resolution order for the profile name is explicit value, then the
// ICELIFT_AWS_PROFILE environment variable, then "default".
type DestinationConfig struct {
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// CatalogConfig holds the REST catalog connection settings used for
// table discovery.
type CatalogConfig struct {
	URL          string `yaml:"url"`
	Name         string `yaml:"name"`
	Realm        string `yaml:"realm"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// PrefixConfig holds the absolute URI prefixes rewritten by the metadata
// path rewriter. When unset, each defaults to "s3://{bucket}/" of the
// corresponding store.
type PrefixConfig struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// TransferConfig holds the per-object transfer settings.
type TransferConfig struct {
	// Retries is the total number of attempts per object.
	Retries int `yaml:"retries"`
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration `yaml:"backoff"`
	// Workers bounds concurrent transfers within one table. 1 means
	// sequential, deterministic ordering.
	Workers int `yaml:"workers"`
}

// Config holds the full migration configuration.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Prefix      PrefixConfig      `yaml:"prefix"`
	StatePath   string            `yaml:"state"`
	Transfer    TransferConfig    `yaml:"transfer"`
}

// Default configuration values.
const (
	DefaultRegion    = "us-east-1"
	DefaultStatePath = ".icelift/state.json"
	DefaultRetries   = 3
	DefaultBackoff   = 1 * time.Second
	DefaultWorkers   = 1
	DefaultScope     = "PRINCIPAL_ROLE:ALL"
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Region: DefaultRegion,
		},
		Destination: DestinationConfig{
			Region: DefaultRegion,
		},
		Catalog: CatalogConfig{
			Scope: DefaultScope,
		},
		StatePath: DefaultStatePath,
		Transfer: TransferConfig{
			Retries: DefaultRetries,
			Backoff: DefaultBackoff,
			Workers: DefaultWorkers,
		},
	}
}

// LoadConfig reads a YAML configuration file, expanding ${VAR} references
// in string values from the environment. Missing optional fields fall back
// to defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Region == "" {
		c.Source.Region = DefaultRegion
	}
	if c.Destination.Region == "" {
		c.Destination.Region = DefaultRegion
	}
	if c.Destination.Profile == "" {
		if p := os.Getenv("ICELIFT_AWS_PROFILE"); p != "" {
			c.Destination.Profile = p
		} else {
			c.Destination.Profile = "default"
		}
	}
	if c.Catalog.Scope == "" {
		c.Catalog.Scope = DefaultScope
	}
	if c.Prefix.Source == "" && c.Source.Bucket != "" {
		c.Prefix.Source = "s3://" + c.Source.Bucket + "/"
	}
	if c.Prefix.Destination == "" && c.Destination.Bucket != "" {
		c.Prefix.Destination = "s3://" + c.Destination.Bucket + "/"
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
	if c.Transfer.Retries <= 0 {
		c.Transfer.Retries = DefaultRetries
	}
	if c.Transfer.Backoff <= 0 {
		c.Transfer.Backoff = DefaultBackoff
	}
	if c.Transfer.Workers <= 0 {
		c.Transfer.Workers = DefaultWorkers
	}
}

// Validate checks that the configuration is complete enough to run a
// migration.
func (c *Config) Validate() error {
	c.applyDefaults()
	if c.Source.Endpoint == "" {
		return &ValidationError{Field: "source.endpoint", Message: "source endpoint is required"}
	}
	if c.Source.Bucket == "" {
		return &ValidationError{Field: "source.bucket", Message: "source bucket is required"}
	}
	if c.Source.AccessKeyID == "" || c.Source.SecretAccessKey == "" {
		return &ValidationError{Field: "source.access_key", Message: "source static credentials are required"}
	}
	if c.Destination.Bucket == "" {
		return &ValidationError{Field: "destination.bucket", Message: "destination bucket is required"}
	}
	if !strings.HasSuffix(c.Prefix.Source, "/") {
		return &ValidationError{Field: "prefix.source", Message: "prefix must end with /"}
	}
	if !strings.HasSuffix(c.Prefix.Destination, "/") {
		return &ValidationError{Field: "prefix.destination", Message: "prefix must end with /"}
	}
	return nil
}

// Option is a functional option for Migrator configuration.
type Option func(*options)

// WithLogger sets the logger used by all components.
func WithLogger(logger FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCatalog injects a pre-built catalog client, bypassing the
// catalog section of the configuration.
func WithCatalog(c CatalogClient) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithSourceStore injects a pre-built source store handle.
func WithSourceStore(s ObjectStore) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithDestinationStore injects a pre-built destination store handle.
func WithDestinationStore(s ObjectStore) Option {
	return func(o *options) {
		o.destination = s
	}
}

type options struct {
	logger      FieldLogger
	catalog     CatalogClient
	source      ObjectStore
	destination ObjectStore
}
