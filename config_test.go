package icelift

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const configYAML = `
source:
  endpoint: http://localhost:9000
  bucket: srcbkt
  access_key: ${ICELIFT_TEST_ACCESS_KEY}
  secret_key: ${ICELIFT_TEST_SECRET_KEY}
destination:
  bucket: dstbkt
  profile: lakehouse
catalog:
  url: http://localhost:8181
  name: lakehouse
  realm: POLARIS
  client_id: root
  client_secret: s3cr3t
state: /tmp/icelift-state.json
transfer:
  retries: 5
  backoff: 2s
  workers: 4
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icelift.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ICELIFT_TEST_ACCESS_KEY", "minioadmin")
	t.Setenv("ICELIFT_TEST_SECRET_KEY", "miniosecret")

	cfg, err := LoadConfig(writeConfig(t, configYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Source.AccessKeyID != "minioadmin" {
		t.Errorf("AccessKeyID = %q, want env-expanded value", cfg.Source.AccessKeyID)
	}
	if cfg.Destination.Profile != "lakehouse" {
		t.Errorf("Profile = %q, want lakehouse", cfg.Destination.Profile)
	}
	if cfg.Transfer.Retries != 5 || cfg.Transfer.Backoff != 2*time.Second || cfg.Transfer.Workers != 4 {
		t.Errorf("Transfer = %+v, want retries 5, backoff 2s, workers 4", cfg.Transfer)
	}

	// Prefixes default to the bucket roots.
	if cfg.Prefix.Source != "s3://srcbkt/" {
		t.Errorf("Prefix.Source = %q, want s3://srcbkt/", cfg.Prefix.Source)
	}
	if cfg.Prefix.Destination != "s3://dstbkt/" {
		t.Errorf("Prefix.Destination = %q, want s3://dstbkt/", cfg.Prefix.Destination)
	}

	// Omitted fields fall back to defaults.
	if cfg.Source.Region != DefaultRegion {
		t.Errorf("Source.Region = %q, want %q", cfg.Source.Region, DefaultRegion)
	}
	if cfg.Catalog.Scope != DefaultScope {
		t.Errorf("Catalog.Scope = %q, want %q", cfg.Catalog.Scope, DefaultScope)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig() expected error for missing file")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StatePath != DefaultStatePath {
		t.Errorf("StatePath = %q, want %q", cfg.StatePath, DefaultStatePath)
	}
	if cfg.Transfer.Retries != DefaultRetries || cfg.Transfer.Backoff != DefaultBackoff || cfg.Transfer.Workers != DefaultWorkers {
		t.Errorf("Transfer = %+v, want defaults", cfg.Transfer)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Source: SourceConfig{
				Endpoint:        "http://localhost:9000",
				Bucket:          "srcbkt",
				AccessKeyID:     "ak",
				SecretAccessKey: "sk",
			},
			Destination: DestinationConfig{Bucket: "dstbkt"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() error = %v for valid config", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing endpoint", func(c *Config) { c.Source.Endpoint = "" }, "source.endpoint"},
		{"missing source bucket", func(c *Config) { c.Source.Bucket = "" }, "source.bucket"},
		{"missing credentials", func(c *Config) { c.Source.SecretAccessKey = "" }, "source.access_key"},
		{"missing destination bucket", func(c *Config) { c.Destination.Bucket = "" }, "destination.bucket"},
		{"bad source prefix", func(c *Config) { c.Prefix.Source = "s3://srcbkt" }, "prefix.source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("field = %v, want %s", err, tt.field)
			}
		})
	}
}
