// Package app holds the CLI's configuration loading: environment
// variables and .env files for credentials and endpoints, a YAML profile
// file for what gets synced where.
package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration, loaded from environment
// variables and .env files. Profiles come separately from the profile
// file.
type Config struct {
	// Catalog service.
	CatalogURL   string
	AuthURL      string
	ClientID     string
	ClientSecret string

	// Source systems.
	PortalURL   string
	RegistryURL string

	// Engine.
	MappingDir string
	ReportDir  string
	Pacing     time.Duration

	// Logging.
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration in order of precedence: environment
// variables, then .env files, then defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("catalog_url", "https://catalog.bs.ch")
	v.SetDefault("portal_url", "https://data.bs.ch")
	v.SetDefault("registry_url", "https://gesetzessammlung.bs.ch")
	v.SetDefault("mapping_dir", "mappings")
	v.SetDefault("report_dir", "reports")
	v.SetDefault("sync_pacing", 500*time.Millisecond)

	return &Config{
		CatalogURL:   v.GetString("catalog_url"),
		AuthURL:      v.GetString("catalog_auth_url"),
		ClientID:     v.GetString("catalog_client_id"),
		ClientSecret: v.GetString("catalog_client_secret"),
		PortalURL:    v.GetString("portal_url"),
		RegistryURL:  v.GetString("registry_url"),
		MappingDir:   v.GetString("mapping_dir"),
		ReportDir:    v.GetString("report_dir"),
		Pacing:       v.GetDuration("sync_pacing"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "auto"),
	}, nil
}

// loadEnvFiles loads .env files from the working directory. Existing
// environment variables win over file values.
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
