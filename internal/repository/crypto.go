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

package repository

import (
	"fmt"

	"blockarchitech.com/scheduler/internal/models"
	"blockarchitech.com/scheduler/internal/utils"
)

// tokenCipher encrypts integration credentials before they reach a persistent store.
// An empty key disables encryption.
type tokenCipher struct {
	key string
}

// encryptSettings returns a copy of settings with integration tokens encrypted.
func (c tokenCipher) encryptSettings(settings *models.Settings) (*models.Settings, error) {
	encrypted := settings.Clone()
	if c.key == "" {
		return encrypted, nil
	}
	for i := range encrypted.Integrations {
		tok := encrypted.Integrations[i].Token
		if tok == nil {
			continue
		}
		var err error
		if tok.AccessToken != "" {
			tok.AccessToken, err = utils.Encrypt(tok.AccessToken, c.key)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt %s access token: %w", encrypted.Integrations[i].Provider, err)
			}
		}
		if tok.RefreshToken != "" {
			tok.RefreshToken, err = utils.Encrypt(tok.RefreshToken, c.key)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt %s refresh token: %w", encrypted.Integrations[i].Provider, err)
			}
		}
	}
	return encrypted, nil
}

// decryptSettings decrypts integration tokens in place.
func (c tokenCipher) decryptSettings(settings *models.Settings) error {
	if c.key == "" {
		return nil
	}
	for i := range settings.Integrations {
		tok := settings.Integrations[i].Token
		if tok == nil {
			continue
		}
		var err error
		if tok.AccessToken != "" {
			tok.AccessToken, err = utils.Decrypt(tok.AccessToken, c.key)
			if err != nil {
				return fmt.Errorf("failed to decrypt %s access token: %w", settings.Integrations[i].Provider, err)
			}
		}
		if tok.RefreshToken != "" {
			tok.RefreshToken, err = utils.Decrypt(tok.RefreshToken, c.key)
			if err != nil {
				return fmt.Errorf("failed to decrypt %s refresh token: %w", settings.Integrations[i].Provider, err)
			}
		}
	}
	return nil
}

// normalize restores the empty-list invariant that some stores lose on round trip.
func normalize(settings *models.Settings) {
	if settings.Integrations == nil {
		settings.Integrations = []models.Integration{}
	}
}
