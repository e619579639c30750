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

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blockarchitech.com/scheduler/internal/metrics"
	"blockarchitech.com/scheduler/internal/models"
	"blockarchitech.com/scheduler/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrEmptyUserID = errors.New("user id is required")
)

// SettingsService provisions and mutates settings records.
type SettingsService struct {
	repo   repository.Repository
	tracer trace.Tracer
	logger *zap.Logger
	now    func() time.Time
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(repo repository.Repository, tracer trace.Tracer, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		tracer: tracer,
		logger: logger.Named("settings_service"),
		now:    time.Now,
	}
}

// Provision returns the user's settings, creating the default record first if
// none exists. created reports whether this call persisted the record.
func (s *SettingsService) Provision(ctx context.Context, userID string) (settings *models.Settings, created bool, err error) {
	ctx, span := s.tracer.Start(ctx, "SettingsService.Provision",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provision failed")
		}
	}()

	if userID == "" {
		return nil, false, ErrEmptyUserID
	}

	existing, err := s.repo.GetSettingsByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		metrics.IncProvisioned(false)
		return existing, false, nil
	}

	fresh := models.DefaultSettings(userID)
	err = s.repo.CreateSettings(ctx, &fresh)
	if errors.Is(err, repository.ErrSettingsExists) {
		// Another request provisioned first; the unique index kept one record.
		winner, err := s.repo.GetSettingsByUserID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("settings for user %s vanished after create conflict", userID)
		}
		metrics.IncProvisioned(false)
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("Provisioned default settings", zap.String("userId", userID))
	metrics.IncProvisioned(true)
	return &fresh, true, nil
}

// Update applies a partial update. It returns nil settings when the user has
// not been provisioned.
func (s *SettingsService) Update(ctx context.Context, userID string, req UpdateSettingsRequest) (*models.Settings, error) {
	ctx, span := s.tracer.Start(ctx, "SettingsService.Update",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.now().UTC()
	updated, err := s.repo.UpdateSettings(ctx, userID, func(current *models.Settings) error {
		req.apply(current, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	s.logger.Info("Updated settings", zap.String("userId", userID))
	return updated, nil
}

// Delete removes the user's settings. Deleting absent settings is not an error.
func (s *SettingsService) Delete(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "SettingsService.Delete",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := s.repo.DeleteSettingsByUserID(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	return nil
}
