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
	"testing"

	"blockarchitech.com/scheduler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWKS_URL", "https://auth.example.com/.well-known/jwks.json")
	t.Setenv("STORAGE_TYPE", "inmemory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageInMemory, cfg.StorageType)
	assert.Equal(t, "https://auth.example.com/.well-known/jwks.json", cfg.JWKSURL)
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{Port: "8080", StorageType: StorageInMemory, JWKSURL: "https://auth.example.com/jwks"}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid inmemory", mutate: func(c *Config) {}},
		{name: "missing jwks", mutate: func(c *Config) { c.JWKSURL = "" }, wantErr: "JWKS_URL"},
		{name: "firestore without project", mutate: func(c *Config) { c.StorageType = StorageFirestore }, wantErr: "GCP_PROJECT_ID"},
		{name: "firestore with project", mutate: func(c *Config) { c.StorageType = StorageFirestore; c.GCPProjectID = "proj" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.StorageType = StorageSQLite }, wantErr: "SQLITE_PATH"},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageType = "mongo" }, wantErr: "invalid storage type"},
		{name: "non hex key", mutate: func(c *Config) { c.SecretKey = "zz" }, wantErr: "hex"},
		{name: "short key", mutate: func(c *Config) { c.SecretKey = "00ff" }, wantErr: "16, 24 or 32"},
		{name: "google id without secret", mutate: func(c *Config) { c.GoogleClientID = "id" }, wantErr: "GOOGLE_CLIENT_SECRET"},
		{name: "oauth client without key", mutate: func(c *Config) {
			c.ZoomClientID, c.ZoomClientSecret, c.OAuthRedirectURL = "id", "secret", "https://app.example.com/cb"
		}, wantErr: "SECRET_KEY"},
		{name: "oauth client without redirect", mutate: func(c *Config) {
			c.ZoomClientID, c.ZoomClientSecret = "id", "secret"
			c.SecretKey = "000102030405060708090a0b0c0d0e0f"
		}, wantErr: "OAUTH_REDIRECT_URL"},
		{name: "aes-256 key", mutate: func(c *Config) {
			c.SecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigBuildsOAuthProviders(t *testing.T) {
	t.Setenv("JWKS_URL", "https://auth.example.com/.well-known/jwks.json")
	t.Setenv("STORAGE_TYPE", "inmemory")
	t.Setenv("SECRET_KEY", "000102030405060708090a0b0c0d0e0f")
	t.Setenv("OAUTH_REDIRECT_URL", "https://app.example.com/integrations/callback/")
	t.Setenv("GOOGLE_CLIENT_ID", "google-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "google-secret")
	t.Setenv("ZOOM_CLIENT_ID", "zoom-id")
	t.Setenv("ZOOM_CLIENT_SECRET", "zoom-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.OAuthProviders, 3)

	gcal := cfg.OAuthProviders[models.ProviderGoogleCalendar]
	require.NotNil(t, gcal)
	assert.Equal(t, "google-id", gcal.ClientID)
	assert.Equal(t, "https://app.example.com/integrations/callback/google_calendar", gcal.RedirectURL)
	assert.NotNil(t, cfg.OAuthProviders[models.ProviderGoogleMeet])
	assert.Equal(t, "https://zoom.us/oauth/token", cfg.OAuthProviders[models.ProviderZoom].Endpoint.TokenURL)
	assert.Nil(t, cfg.OAuthProviders[models.ProviderOutlookCalendar], "no microsoft credentials")
}
