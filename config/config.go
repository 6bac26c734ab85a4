// Package config loads the options of spec.md §6 into a Config struct,
// modelled on rclone's Options structs (backend/cache/cache.go's Options /
// backend/local/local.go's Options) but tagged `yaml:"..."` rather than
// rclone's `config:"..."`, and without depending on rclone's
// fs/config/configstruct decoder, which
// belongs to a configuration subsystem (remote-name resolution,
// interactive prompts) this module never carries. Values are read from a
// YAML document via gopkg.in/yaml.v2, a direct teacher go.mod dependency.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config mirrors spec.md §6's option table.
type Config struct {
	CacheDirectory       string `yaml:"cache_directory"`
	ColdStorageDirectory string `yaml:"cold_storage_directory"`
	UseColdStorage       bool   `yaml:"use_cold_storage"`

	DistributionFileServerAddress    string  `yaml:"distribution_file_server_address"`
	IsDistributionNode               bool    `yaml:"is_distribution_node"`
	DistributionFileServerForceHTTP2 bool    `yaml:"distribution_file_server_force_http2"`
	DistributionRoute                string  `yaml:"distribution_route"`
	DistributionBearerToken          string  `yaml:"distribution_bearer_token"`
	DistributionRequestsPerSecond    float64 `yaml:"distribution_requests_per_second"`

	UnusedFileRetentionPeriodInDays            int     `yaml:"unused_file_retention_period_in_days"`
	ForcedDeletionOfFilesAfterHours            int     `yaml:"forced_deletion_of_files_after_hours"`
	CacheSizeHardLimitInGiB                    float64 `yaml:"cache_size_hard_limit_in_gib"`
	ColdStorageUnusedFileRetentionPeriodInDays int     `yaml:"cold_storage_unused_file_retention_period_in_days"`
	ColdStorageSizeHardLimitInGiB              float64 `yaml:"cold_storage_size_hard_limit_in_gib"`
	CleanupCheckInMinutes                      int     `yaml:"cleanup_check_in_minutes"`
}

// Defaults mirrors the defaults spec.md §6 lists explicitly. Of the options
// the table is silent on, the distribution route defaults to "/files" and
// the rate limit to -1 (unlimited); the rest keep their Go zero value.
func Defaults() Config {
	return Config{
		UnusedFileRetentionPeriodInDays:            14,
		ForcedDeletionOfFilesAfterHours:            0,
		ColdStorageUnusedFileRetentionPeriodInDays: 60,
		CleanupCheckInMinutes:                      15,
		DistributionRoute:                          "/files",
		DistributionRequestsPerSecond:               -1,
	}
}

// Load reads and merges a YAML config file over Defaults, then validates
// it per spec.md §6's required-field notes.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces spec.md §6's required-field notes: CacheDirectory is
// always required; ColdStorageDirectory is required only when
// UseColdStorage is set.
func (c Config) Validate() error {
	if c.CacheDirectory == "" {
		return fmt.Errorf("config: cache_directory is required")
	}
	if c.UseColdStorage && c.ColdStorageDirectory == "" {
		return fmt.Errorf("config: cold_storage_directory is required when use_cold_storage is set")
	}
	return nil
}

// HasPeer reports whether a distribution peer is configured; spec.md §3:
// "If no upstream peer is configured, the cache is authoritative."
func (c Config) HasPeer() bool {
	return c.DistributionFileServerAddress != ""
}

// CacheSizeHardLimitBytes converts the GiB-denominated option to bytes,
// preserving the "<=0 disables" sentinel of spec.md §6.
func (c Config) CacheSizeHardLimitBytes() int64 {
	return gibToBytes(c.CacheSizeHardLimitInGiB)
}

// ColdStorageSizeHardLimitBytes converts the GiB-denominated option to bytes.
func (c Config) ColdStorageSizeHardLimitBytes() int64 {
	return gibToBytes(c.ColdStorageSizeHardLimitInGiB)
}

func gibToBytes(gib float64) int64 {
	if gib <= 0 {
		return 0
	}
	return int64(gib * (1 << 30))
}

// ForcedDeletionDuration returns the forced-deletion window, or 0 if disabled.
func (c Config) ForcedDeletionDuration() time.Duration {
	if c.ForcedDeletionOfFilesAfterHours <= 0 {
		return 0
	}
	return time.Duration(c.ForcedDeletionOfFilesAfterHours) * time.Hour
}
