/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"blockarchitech.com/scheduler/internal/models"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

const (
	StorageFirestore = "firestore"
	StorageSQLite    = "sqlite"
	StorageInMemory  = "inmemory"

	InternalKeyHeader = "X-Internal-Key"
)

// Config holds the application configuration values.
type Config struct {
	Port                 string
	StorageType          string
	GCPProjectID         string
	SQLitePath           string
	SecretKey            string
	JWKSURL              string
	AuthIssuer           string
	InternalAPIKey       string
	CORSAllowedOrigins   string
	OtelExporterEndpoint string
	Version              string

	OAuthRedirectURL      string
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	ZoomClientID          string
	ZoomClientSecret      string

	// OAuthProviders holds one client per connectable integration provider.
	OAuthProviders map[string]*oauth2.Config
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first if one exists; real environment variables win.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		StorageType:          getEnv("STORAGE_TYPE", StorageInMemory),
		GCPProjectID:         getEnv("GCP_PROJECT_ID", ""),
		SQLitePath:           getEnv("SQLITE_PATH", ""),
		SecretKey:            getEnv("SECRET_KEY", ""),
		JWKSURL:              getEnv("JWKS_URL", ""),
		AuthIssuer:           getEnv("AUTH_ISSUER", ""),
		InternalAPIKey:       getEnv("INTERNAL_API_KEY", ""),
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", ""),
		OtelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),
		Version:              getEnv("VERSION", "dev"),

		OAuthRedirectURL:      getEnv("OAUTH_REDIRECT_URL", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),
		ZoomClientID:          getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:      getEnv("ZOOM_CLIENT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.OAuthProviders = cfg.buildOAuthProviders()
	return cfg, nil
}

// Validate checks option combinations that cannot work at runtime.
func (c *Config) Validate() error {
	if c.JWKSURL == "" {
		return fmt.Errorf("JWKS_URL is not set")
	}

	switch c.StorageType {
	case StorageFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("STORAGE_TYPE is 'firestore' but GCP_PROJECT_ID is not set")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("STORAGE_TYPE is 'sqlite' but SQLITE_PATH is not set")
		}
	case StorageInMemory:
	default:
		return fmt.Errorf("invalid storage type: %s", c.StorageType)
	}

	if c.SecretKey != "" {
		key, err := hex.DecodeString(c.SecretKey)
		if err != nil {
			return fmt.Errorf("SECRET_KEY must be hex encoded: %w", err)
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("SECRET_KEY must decode to 16, 24 or 32 bytes, got %d", len(key))
		}
	}

	clients := []struct{ name, id, secret string }{
		{"GOOGLE", c.GoogleClientID, c.GoogleClientSecret},
		{"MICROSOFT", c.MicrosoftClientID, c.MicrosoftClientSecret},
		{"ZOOM", c.ZoomClientID, c.ZoomClientSecret},
	}
	anyClient := false
	for _, cl := range clients {
		if (cl.id == "") != (cl.secret == "") {
			return fmt.Errorf("%s_CLIENT_ID and %s_CLIENT_SECRET must be set together", cl.name, cl.name)
		}
		anyClient = anyClient || cl.id != ""
	}
	if anyClient {
		if c.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY is required when an OAuth client is configured")
		}
		if c.OAuthRedirectURL == "" {
			return fmt.Errorf("OAUTH_REDIRECT_URL is required when an OAuth client is configured")
		}
	}

	return nil
}

// buildOAuthProviders returns the OAuth clients for every provider with credentials.
// Redirects land on OAUTH_REDIRECT_URL/<provider>.
func (c *Config) buildOAuthProviders() map[string]*oauth2.Config {
	providers := make(map[string]*oauth2.Config)
	redirect := func(provider string) string {
		return strings.TrimRight(c.OAuthRedirectURL, "/") + "/" + provider
	}

	if c.GoogleClientID != "" {
		providers[models.ProviderGoogleCalendar] = &oauth2.Config{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  redirect(models.ProviderGoogleCalendar),
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
			Endpoint:     google.Endpoint,
		}
		providers[models.ProviderGoogleMeet] = &oauth2.Config{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  redirect(models.ProviderGoogleMeet),
			Scopes:       []string{"https://www.googleapis.com/auth/meetings.space.created"},
			Endpoint:     google.Endpoint,
		}
	}
	if c.MicrosoftClientID != "" {
		providers[models.ProviderOutlookCalendar] = &oauth2.Config{
			ClientID:     c.MicrosoftClientID,
			ClientSecret: c.MicrosoftClientSecret,
			RedirectURL:  redirect(models.ProviderOutlookCalendar),
			Scopes:       []string{"offline_access", "Calendars.ReadWrite"},
			Endpoint:     microsoft.AzureADEndpoint("common"),
		}
	}
	if c.ZoomClientID != "" {
		providers[models.ProviderZoom] = &oauth2.Config{
			ClientID:     c.ZoomClientID,
			ClientSecret: c.ZoomClientSecret,
			RedirectURL:  redirect(models.ProviderZoom),
			Scopes:       []string{"meeting:write"},

			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://zoom.us/oauth/authorize",
				TokenURL: "https://zoom.us/oauth/token",
			},
		}
	}
	return providers
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
