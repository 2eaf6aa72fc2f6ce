package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	Catalog CatalogConfig `toml:"catalog"`
	History HistoryConfig `toml:"history"`
	Links   LinksConfig   `toml:"links"`
}

// CatalogConfig contains metadata-provider API credentials.
//
// AccessToken carries the playlist-write grant; metadata queries use the
// two-legged client-credentials flow.
type CatalogConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AccessToken  string `toml:"access_token"`
}

// HistoryConfig contains listening-history provider settings.
type HistoryConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LinksConfig contains link-resolution service settings.
type LinksConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PipelineConfig contains enrichment pipeline tuning knobs.
type PipelineConfig struct {
	CatalogRateLimit float64 `toml:"catalog_rate_limit"` // requests per second
	HistoryRateLimit float64 `toml:"history_rate_limit"` // requests per second
	ScanCooldownDays int     `toml:"scan_cooldown_days"` // no-match re-scan cooldown
	RecentWindowDays int     `toml:"recent_window_days"` // only resolve tracks played this recently
	ScrapeBudget     int     `toml:"scrape_budget"`      // storefront pages fetched per run
	PlaylistSize     int     `toml:"playlist_size"`      // tracks per built playlist
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
