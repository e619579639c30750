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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
	id                           TEXT PRIMARY KEY,
	user_id                      TEXT NOT NULL,
	duration_minute              INTEGER NOT NULL,
	breaking_time_between_events INTEGER NOT NULL,
	face_id                      INTEGER NOT NULL,
	push_notifications           INTEGER NOT NULL,
	integrations                 TEXT NOT NULL DEFAULT '[]',
	created_at                   TEXT NOT NULL,
	updated_at                   TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settings_user_id ON settings(user_id);
`

const selectSettingsColumns = `id, user_id, duration_minute, breaking_time_between_events,
	face_id, push_notifications, integrations, created_at, updated_at`

// integrationRecord is the persisted form of models.Integration. Unlike the
// API form it carries the (encrypted) token.
type integrationRecord struct {
	Provider    string        `json:"provider"`
	AccountID   string        `json:"accountId"`
	ConnectedAt time.Time     `json:"connectedAt"`
	Token       *oauth2.Token `json:"token,omitempty"`
}

// SQLiteRepository is a SQLite implementation of Repository.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
	cipher tokenCipher
}

// NewSQLiteRepository opens the database at path and applies the schema.
func NewSQLiteRepository(ctx context.Context, path string, secretKey string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	logger.Info("Opened SQLite database", zap.String("path", path))
	return &SQLiteRepository{
		db:     db,
		logger: logger.Named("sqlite_repo"),
		cipher: tokenCipher{key: secretKey},
	}, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var (
		user      models.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, image_url, created_at FROM users WHERE id = ?`, userID,
	).Scan(&user.ID, &user.Email, &user.Name, &user.ImageURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to decode user created_at: %w", err)
	}
	return &user, nil
}

func (r *SQLiteRepository) GetSettingsByUserID(ctx context.Context, userID string) (*models.Settings, error) {
	return r.querySettings(ctx, r.db, userID)
}

// queryer is satisfied by *sql.DB and *sql.Conn.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRepository) querySettings(ctx context.Context, q queryer, userID string) (*models.Settings, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+selectSettingsColumns+` FROM settings WHERE user_id = ? LIMIT 2`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings by user id: %w", err)
	}
	defer rows.Close()

	var found []*models.Settings
	for rows.Next() {
		s, err := r.scanSettings(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings rows: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, nil // Not found
	case 1:
		return found[0], nil
	default:
		r.logger.Error("Settings uniqueness violated", zap.String("userId", userID), zap.Int("matches", len(found)))
		return nil, fmt.Errorf("user %s: %w", userID, ErrDuplicateSettings)
	}
}

func (r *SQLiteRepository) CreateSettings(ctx context.Context, settings *models.Settings) error {
	now := time.Now().UTC()
	toStore := settings.Clone()
	toStore.ID = uuid.NewString()
	toStore.CreatedAt = now
	toStore.UpdatedAt = now

	integrations, err := r.encodeIntegrations(toStore)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (id, user_id, duration_minute, breaking_time_between_events,
			face_id, push_notifications, integrations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toStore.ID, toStore.UserID, toStore.DurationMinute, toStore.BreakingTimeBetweenEvents,
		toStore.FaceID, toStore.PushNotifications, integrations,
		formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", settings.UserID, ErrSettingsExists)
		}
		return fmt.Errorf("failed to insert settings: %w", err)
	}

	settings.ID = toStore.ID
	settings.CreatedAt = now
	settings.UpdatedAt = now
	normalize(settings)
	r.logger.Info("Created settings in SQLite", zap.String("userId", settings.UserID), zap.String("settingsId", settings.ID))
	return nil
}

func (r *SQLiteRepository) UpdateSettings(ctx context.Context, userID string, mutate MutateFunc) (updated *models.Settings, err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sqlite connection: %w", err)
	}
	defer conn.Close()

	// IMMEDIATE takes the write lock before the read, so concurrent updates serialize.
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return nil, fmt.Errorf("failed to begin update transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if _, rbErr := conn.ExecContext(context.Background(), `ROLLBACK`); rbErr != nil {
				r.logger.Error("Failed to roll back settings update", zap.String("userId", userID), zap.Error(rbErr))
			}
		}
	}()

	current, err := r.querySettings(ctx, conn, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrSettingsNotFound)
	}

	next := current.Clone()
	if err = mutate(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.UserID = userID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	normalize(next)

	integrations, err := r.encodeIntegrations(next)
	if err != nil {
		return nil, err
	}

	_, err = conn.ExecContext(ctx, `
		UPDATE settings SET
			duration_minute = ?,
			breaking_time_between_events = ?,
			face_id = ?,
			push_notifications = ?,
			integrations = ?,
			updated_at = ?
		WHERE id = ?`,
		next.DurationMinute, next.BreakingTimeBetweenEvents,
		next.FaceID, next.PushNotifications, integrations,
		formatTime(next.UpdatedAt), next.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return nil, fmt.Errorf("failed to commit settings update: %w", err)
	}

	r.logger.Info("Updated settings in SQLite", zap.String("userId", userID))
	return next, nil
}

func (r *SQLiteRepository) DeleteSettingsByUserID(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted rows: %w", err)
	}
	r.logger.Info("Deleted settings from SQLite", zap.String("userId", userID), zap.Int64("count", n))
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) scanSettings(rows *sql.Rows) (*models.Settings, error) {
	var (
		s                    models.Settings
		integrations         string
		createdAt, updatedAt string
	)
	if err := rows.Scan(&s.ID, &s.UserID, &s.DurationMinute, &s.BreakingTimeBetweenEvents,
		&s.FaceID, &s.PushNotifications, &integrations, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan settings row: %w", err)
	}

	var records []integrationRecord
	if err := json.Unmarshal([]byte(integrations), &records); err != nil {
		return nil, fmt.Errorf("failed to decode integrations: %w", err)
	}
	s.Integrations = make([]models.Integration, len(records))
	for i, rec := range records {
		s.Integrations[i] = models.Integration(rec)
	}

	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to decode settings created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to decode settings updated_at: %w", err)
	}
	if err := r.cipher.decryptSettings(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) encodeIntegrations(settings *models.Settings) (string, error) {
	encrypted, err := r.cipher.encryptSettings(settings)
	if err != nil {
		return "", err
	}
	records := make([]integrationRecord, len(encrypted.Integrations))
	for i, in := range encrypted.Integrations {
		records[i] = integrationRecord(in)
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode integrations: %w", err)
	}
	return string(raw), nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
