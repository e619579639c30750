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
	"context"
	"fmt"
	"sync"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu             sync.RWMutex
	settings       map[string]*models.Settings // by settings ID
	settingsByUser map[string]string           // unique index: userId -> settings ID
	users          map[string]*models.User
	logger         *zap.Logger
}

// NewInMemoryRepository creates a new InMemoryRepository.
func NewInMemoryRepository(logger *zap.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		settings:       make(map[string]*models.Settings),
		settingsByUser: make(map[string]string),
		users:          make(map[string]*models.User),
		logger:         logger.Named("inmemory_repo"),
	}
}

// PutUser stores a user record. Users are owned by the auth provider, so this
// exists only to seed local development and tests.
func (r *InMemoryRepository) PutUser(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = &user
}

func (r *InMemoryRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, exists := r.users[userID]
	if !exists {
		return nil, nil // Not found
	}
	u := *user
	return &u, nil
}

func (r *InMemoryRepository) GetSettingsByUserID(ctx context.Context, userID string) (*models.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.settingsByUser[userID]
	if !exists {
		return nil, nil // Not found
	}
	return r.settings[id].Clone(), nil
}

func (r *InMemoryRepository) CreateSettings(ctx context.Context, settings *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.settingsByUser[settings.UserID]; exists {
		return fmt.Errorf("user %s: %w", settings.UserID, ErrSettingsExists)
	}

	now := time.Now().UTC()
	settings.ID = uuid.NewString()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	normalize(settings)

	r.settings[settings.ID] = settings.Clone()
	r.settingsByUser[settings.UserID] = settings.ID
	r.logger.Info("Created settings in-memory", zap.String("userId", settings.UserID), zap.String("settingsId", settings.ID))
	return nil
}

func (r *InMemoryRepository) UpdateSettings(ctx context.Context, userID string, mutate MutateFunc) (*models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, exists := r.settingsByUser[userID]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, ErrSettingsNotFound)
	}

	stored := r.settings[id]
	next := stored.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.UserID = userID
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	normalize(next)

	r.settings[id] = next.Clone()
	r.logger.Info("Updated settings in-memory", zap.String("userId", userID))
	return next, nil
}

func (r *InMemoryRepository) DeleteSettingsByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, exists := r.settingsByUser[userID]
	if !exists {
		return nil
	}
	delete(r.settings, id)
	delete(r.settingsByUser, userID)
	r.logger.Info("Deleted settings in-memory", zap.String("userId", userID))
	return nil
}

func (r *InMemoryRepository) Close() error {
	r.logger.Info("Closing in-memory repository (no-op).")
	return nil
}
