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
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const testSecretKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// repoFactory builds an empty repository plus a hook that seeds a user record.
type repoFactory func(t *testing.T) (Repository, func(models.User))

func newInMemory(t *testing.T) (Repository, func(models.User)) {
	r := NewInMemoryRepository(zap.NewNop())
	return r, r.PutUser
}

func newSQLite(t *testing.T) (Repository, func(models.User)) {
	r, err := NewSQLiteRepository(context.Background(), ":memory:", testSecretKey, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, func(u models.User) {
		_, err := r.db.Exec(`INSERT INTO users (id, email, name, image_url, created_at) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.Name, u.ImageURL, formatTime(u.CreatedAt))
		require.NoError(t, err)
	}
}

func newFirestore(t *testing.T) (Repository, func(models.User)) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	r, err := NewFirestoreRepository(ctx, "scheduler-test", testSecretKey, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, func(u models.User) {
		_, err := r.client.Collection(userCollection).Doc(u.ID).Set(ctx, u)
		require.NoError(t, err)
	}
}

var factories = map[string]repoFactory{
	"inmemory":  newInMemory,
	"sqlite":    newSQLite,
	"firestore": newFirestore,
}

// uniqueUser keeps runs against a shared emulator from colliding.
func uniqueUser(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}

func TestGetSettingsByUserID(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			u1 := uniqueUser("u1")

			got, err := repo.GetSettingsByUserID(ctx, u1)
			require.NoError(t, err, "absent is not an error")
			assert.Nil(t, got)

			s := models.DefaultSettings(u1)
			require.NoError(t, repo.CreateSettings(ctx, &s))
			assert.NotEmpty(t, s.ID)
			assert.False(t, s.CreatedAt.IsZero())

			got, err = repo.GetSettingsByUserID(ctx, u1)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, u1, got.UserID)
			assert.Equal(t, 30, got.DurationMinute)
			assert.Equal(t, 0, got.BreakingTimeBetweenEvents)
			assert.False(t, got.FaceID)
			assert.False(t, got.PushNotifications)
			require.NotNil(t, got.Integrations)
			assert.Empty(t, got.Integrations)

			other, err := repo.GetSettingsByUserID(ctx, uniqueUser("u2"))
			require.NoError(t, err)
			assert.Nil(t, other)
		})
	}
}

func TestCreateSettingsEnforcesUniqueUserID(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			userID := uniqueUser("u1")

			first := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &first))

			second := models.DefaultSettings(userID)
			second.DurationMinute = 60
			err := repo.CreateSettings(ctx, &second)
			require.ErrorIs(t, err, ErrSettingsExists)

			got, err := repo.GetSettingsByUserID(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, first.ID, got.ID)
			assert.Equal(t, 30, got.DurationMinute, "losing create must not overwrite")
		})
	}
}

func TestConcurrentCreateLeavesOneRecord(t *testing.T) {
	for _, name := range []string{"inmemory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factories[name](t)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				created int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s := models.DefaultSettings("racer")
					if err := repo.CreateSettings(ctx, &s); err == nil {
						mu.Lock()
						created++
						mu.Unlock()
					} else {
						assert.ErrorIs(t, err, ErrSettingsExists)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, created)
		})
	}
}

func TestSQLiteUniqueIndexRejectsRawDuplicate(t *testing.T) {
	repo, _ := newSQLite(t)
	r := repo.(*SQLiteRepository)
	ctx := context.Background()

	s := models.DefaultSettings("u1")
	require.NoError(t, r.CreateSettings(ctx, &s))

	// Bypass the repository entirely: the store itself must refuse.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (id, user_id, duration_minute, breaking_time_between_events,
			face_id, push_notifications, integrations, created_at, updated_at)
		VALUES ('other', 'u1', 45, 5, 0, 0, '[]', '', '')`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestSQLiteDuplicateRowsSurfaceAsError(t *testing.T) {
	repo, _ := newSQLite(t)
	r := repo.(*SQLiteRepository)
	ctx := context.Background()

	// Simulate a store whose unique index was lost.
	_, err := r.db.ExecContext(ctx, `DROP INDEX idx_settings_user_id`)
	require.NoError(t, err)
	for _, id := range []string{"a", "b"} {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO settings (id, user_id, duration_minute, breaking_time_between_events,
				face_id, push_notifications, integrations, created_at, updated_at)
			VALUES (?, 'u1', 30, 0, 0, 0, '[]', '', '')`, id)
		require.NoError(t, err)
	}

	got, err := r.GetSettingsByUserID(ctx, "u1")
	require.ErrorIs(t, err, ErrDuplicateSettings)
	assert.Nil(t, got)
}

func TestGetUserByID(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, seed := factory(t)
			id := uniqueUser("user")
			created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			seed(models.User{ID: id, Email: "ada@example.com", Name: "Ada", CreatedAt: created})

			got, err := repo.GetUserByID(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, id, got.ID)
			assert.Equal(t, "ada@example.com", got.Email)
			assert.True(t, created.Equal(got.CreatedAt))

			missing, err := repo.GetUserByID(ctx, "missing")
			require.NoError(t, err, "absent is not an error")
			assert.Nil(t, missing)

			caseVariant, err := repo.GetUserByID(ctx, "USER"+id[4:])
			require.NoError(t, err)
			assert.Nil(t, caseVariant, "identifier match is case-sensitive")

			empty, err := repo.GetUserByID(ctx, "")
			require.NoError(t, err)
			assert.Nil(t, empty)
		})
	}
}

func TestUpdateSettings(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			userID := uniqueUser("u1")

			_, err := repo.UpdateSettings(ctx, userID, func(*models.Settings) error { return nil })
			require.ErrorIs(t, err, ErrSettingsNotFound)

			s := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &s))

			updated, err := repo.UpdateSettings(ctx, userID, func(cur *models.Settings) error {
				cur.ID = "hijacked"
				cur.UserID = "someone_else"
				cur.DurationMinute = 45
				cur.BreakingTimeBetweenEvents = 10
				cur.PushNotifications = true
				cur.Integrations = []models.Integration{
					{Provider: "google_calendar", AccountID: "a@example.com", Token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}},
					{Provider: "zoom", AccountID: "z-1"},
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, s.ID, updated.ID, "identity fields are not writable")
			assert.Equal(t, userID, updated.UserID)

			got, err := repo.GetSettingsByUserID(ctx, userID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, 45, got.DurationMinute)
			assert.Equal(t, 10, got.BreakingTimeBetweenEvents)
			assert.True(t, got.PushNotifications)
			require.Len(t, got.Integrations, 2)
			assert.Equal(t, "google_calendar", got.Integrations[0].Provider, "integration order is preserved")
			assert.Equal(t, "zoom", got.Integrations[1].Provider)
			require.NotNil(t, got.Integrations[0].Token)
			assert.Equal(t, "at", got.Integrations[0].Token.AccessToken)
			assert.Equal(t, "rt", got.Integrations[0].Token.RefreshToken)
			assert.True(t, s.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestUpdateSettingsMutateErrorAbortsWrite(t *testing.T) {
	errRejected := errors.New("rejected")
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			userID := uniqueUser("u1")

			s := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &s))

			_, err := repo.UpdateSettings(ctx, userID, func(cur *models.Settings) error {
				cur.DurationMinute = 90
				return errRejected
			})
			require.ErrorIs(t, err, errRejected)

			got, err := repo.GetSettingsByUserID(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, 30, got.DurationMinute)

			// The store is still writable after an aborted update.
			_, err = repo.UpdateSettings(ctx, userID, func(cur *models.Settings) error {
				cur.FaceID = true
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			userID := uniqueUser("u1")

			s := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &s))

			const workers = 5
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := repo.UpdateSettings(ctx, userID, func(cur *models.Settings) error {
						// Every writer appends to what the previous writer committed.
						cur.Integrations = append(cur.Integrations, models.Integration{
							Provider:  "zoom",
							AccountID: fmt.Sprintf("acct-%d", i),
						})
						cur.BreakingTimeBetweenEvents++
						return nil
					})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			got, err := repo.GetSettingsByUserID(ctx, userID)
			require.NoError(t, err)
			assert.Len(t, got.Integrations, workers)
			assert.Equal(t, workers, got.BreakingTimeBetweenEvents)
		})
	}
}

func TestDeleteSettingsByUserID(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo, _ := factory(t)
			userID := uniqueUser("u1")

			require.NoError(t, repo.DeleteSettingsByUserID(ctx, userID), "deleting nothing is fine")

			s := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &s))
			require.NoError(t, repo.DeleteSettingsByUserID(ctx, userID))

			got, err := repo.GetSettingsByUserID(ctx, userID)
			require.NoError(t, err)
			assert.Nil(t, got)

			again := models.DefaultSettings(userID)
			require.NoError(t, repo.CreateSettings(ctx, &again), "index entry is released on delete")
		})
	}
}

func TestSQLiteTokensEncryptedAtRest(t *testing.T) {
	repo, _ := newSQLite(t)
	r := repo.(*SQLiteRepository)
	ctx := context.Background()

	s := models.DefaultSettings("u1")
	s.Integrations = []models.Integration{{Provider: "google_calendar", AccountID: "a", Token: &oauth2.Token{AccessToken: "plain-access"}}}
	require.NoError(t, r.CreateSettings(ctx, &s))
	assert.Equal(t, "plain-access", s.Integrations[0].Token.AccessToken, "caller's record is not mutated")

	var raw string
	require.NoError(t, r.db.QueryRowContext(ctx, `SELECT integrations FROM settings WHERE user_id = 'u1'`).Scan(&raw))
	assert.NotContains(t, raw, "plain-access")
}

func TestInMemoryReturnsCopies(t *testing.T) {
	r := NewInMemoryRepository(zap.NewNop())
	ctx := context.Background()

	s := models.DefaultSettings("u1")
	require.NoError(t, r.CreateSettings(ctx, &s))
	s.DurationMinute = 99

	got, err := r.GetSettingsByUserID(ctx, "u1")
	require.NoError(t, err)
	got.Integrations = append(got.Integrations, models.Integration{Provider: "zoom"})

	again, err := r.GetSettingsByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, again.DurationMinute)
	assert.Empty(t, again.Integrations)
}

func TestValidDocumentID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"user_1", true},
		{"_single_", true},
		{"__", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{"__reserved__", false},
		{"____", false},
		{string(make([]byte, 1501)), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validDocumentID(tt.id), "%q", tt.id)
	}
}
