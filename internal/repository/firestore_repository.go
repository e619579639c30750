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
	"strings"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	settingsCollection = "settings"
	userCollection     = "users"

	// Backed by a single-field index on settings.userId.
	settingsUserIDField = "userId"
)

// FirestoreRepository is a Firestore implementation of Repository.
type FirestoreRepository struct {
	client *firestore.Client
	logger *zap.Logger
	cipher tokenCipher
}

// NewFirestoreRepository creates a new FirestoreRepository.
func NewFirestoreRepository(ctx context.Context, projectID string, secretKey string, logger *zap.Logger) (*FirestoreRepository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	logger.Info("Successfully connected to Firestore", zap.String("projectID", projectID))
	return &FirestoreRepository{
		client: client,
		logger: logger.Named("firestore_repo"),
		cipher: tokenCipher{key: secretKey},
	}, nil
}

func (r *FirestoreRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	if !validDocumentID(userID) {
		return nil, nil
	}

	doc, err := r.client.Collection(userCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

func (r *FirestoreRepository) GetSettingsByUserID(ctx context.Context, userID string) (*models.Settings, error) {
	docs, err := r.settingsQuery(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query settings by user id: %w", err)
	}
	return r.decodeSingle(userID, docs)
}

func (r *FirestoreRepository) CreateSettings(ctx context.Context, settings *models.Settings) error {
	now := time.Now().UTC()
	ref := r.client.Collection(settingsCollection).Doc(uuid.NewString())

	toStore := settings.Clone()
	toStore.CreatedAt = now
	toStore.UpdatedAt = now
	normalize(toStore)
	encrypted, err := r.cipher.encryptSettings(toStore)
	if err != nil {
		return err
	}

	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(r.settingsQuery(settings.UserID)).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return ErrSettingsExists
		}
		return tx.Create(ref, encrypted)
	})
	if err != nil {
		if errors.Is(err, ErrSettingsExists) {
			return fmt.Errorf("user %s: %w", settings.UserID, ErrSettingsExists)
		}
		return fmt.Errorf("failed to create settings in firestore: %w", err)
	}

	settings.ID = ref.ID
	settings.CreatedAt = now
	settings.UpdatedAt = now
	normalize(settings)
	r.logger.Info("Created settings in Firestore", zap.String("userId", settings.UserID), zap.String("settingsId", ref.ID))
	return nil
}

func (r *FirestoreRepository) UpdateSettings(ctx context.Context, userID string, mutate MutateFunc) (*models.Settings, error) {
	var updated *models.Settings

	// The transaction body may run more than once; mutate always sees the latest read.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(r.settingsQuery(userID)).GetAll()
		if err != nil {
			return err
		}
		current, err := r.decodeSingle(userID, docs)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrSettingsNotFound
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.ID = current.ID
		next.UserID = userID
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		normalize(next)

		encrypted, err := r.cipher.encryptSettings(next)
		if err != nil {
			return err
		}
		updated = next
		return tx.Set(docs[0].Ref, encrypted)
	})
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, err)
		}
		if errors.Is(err, ErrDuplicateSettings) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update settings in firestore: %w", err)
	}

	r.logger.Info("Updated settings in Firestore", zap.String("userId", userID))
	return updated, nil
}

func (r *FirestoreRepository) DeleteSettingsByUserID(ctx context.Context, userID string) error {
	iter := r.client.Collection(settingsCollection).Where(settingsUserIDField, "==", userID).Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to find settings by user id for deletion: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to delete settings %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}
	r.logger.Info("Deleted settings from Firestore", zap.String("userId", userID), zap.Int("count", deleted))
	return nil
}

func (r *FirestoreRepository) Close() error {
	return r.client.Close()
}

// settingsQuery fetches up to two matches so a broken uniqueness invariant is visible.
func (r *FirestoreRepository) settingsQuery(userID string) firestore.Query {
	return r.client.Collection(settingsCollection).Where(settingsUserIDField, "==", userID).Limit(2)
}

func (r *FirestoreRepository) decodeSingle(userID string, docs []*firestore.DocumentSnapshot) (*models.Settings, error) {
	switch len(docs) {
	case 0:
		return nil, nil // Not found
	case 1:
	default:
		r.logger.Error("Settings uniqueness violated", zap.String("userId", userID), zap.Int("matches", len(docs)))
		return nil, fmt.Errorf("user %s: %w", userID, ErrDuplicateSettings)
	}

	var settings models.Settings
	if err := docs[0].DataTo(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings data: %w", err)
	}
	settings.ID = docs[0].Ref.ID
	normalize(&settings)
	if err := r.cipher.decryptSettings(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// validDocumentID reports whether id can name a Firestore document.
// Lookups by any other id cannot match and are treated as absent.
func validDocumentID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 1500 {
		return false
	}
	if strings.Contains(id, "/") {
		return false
	}
	if len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__") {
		return false
	}
	return true
}
