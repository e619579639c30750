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
	"errors"

	"blockarchitech.com/scheduler/internal/models"
)

var (
	// ErrSettingsExists is returned when a create would violate the unique userId index.
	ErrSettingsExists = errors.New("settings already exist for user")
	// ErrSettingsNotFound is returned by writes that target a missing record.
	ErrSettingsNotFound = errors.New("settings not found")
	// ErrDuplicateSettings means the store holds more than one settings record
	// for a user. The unique index should make this impossible; it is reported,
	// never repaired here.
	ErrDuplicateSettings = errors.New("multiple settings records for user")
)

// QueryRepository is the read-only view of the document store.
// A nil record with a nil error means the record does not exist.
type QueryRepository interface {
	GetSettingsByUserID(ctx context.Context, userID string) (*models.Settings, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// MutateFunc edits a stored record in place. Returning an error aborts the write.
type MutateFunc func(settings *models.Settings) error

// Repository defines the full set of store operations used by the service.
type Repository interface {
	QueryRepository

	// CreateSettings persists a new record and fills in its ID and timestamps.
	CreateSettings(ctx context.Context, settings *models.Settings) error
	// UpdateSettings reads the user's record, applies mutate and writes it back
	// as one atomic step. The identity fields and CreatedAt cannot be changed.
	UpdateSettings(ctx context.Context, userID string, mutate MutateFunc) (*models.Settings, error)
	DeleteSettingsByUserID(ctx context.Context, userID string) error

	Close() error
}
