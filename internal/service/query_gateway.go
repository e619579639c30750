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

	"blockarchitech.com/scheduler/internal/metrics"
	"blockarchitech.com/scheduler/internal/models"
	"blockarchitech.com/scheduler/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	opGetSettingsByUserID = "getSettingsByUserId"
	opGetUserByID         = "getUserById"
)

// QueryGateway serves read-only lookups against the document store.
// It never retries, caches or translates store errors.
type QueryGateway struct {
	repo   repository.QueryRepository
	tracer trace.Tracer
	logger *zap.Logger
}

// NewQueryGateway creates a new QueryGateway.
func NewQueryGateway(repo repository.QueryRepository, tracer trace.Tracer, logger *zap.Logger) *QueryGateway {
	return &QueryGateway{
		repo:   repo,
		tracer: tracer,
		logger: logger.Named("query_gateway"),
	}
}

// GetSettingsByUserID returns the user's settings, or nil if none have been provisioned.
func (g *QueryGateway) GetSettingsByUserID(ctx context.Context, userID string) (*models.Settings, error) {
	ctx, span := g.tracer.Start(ctx, "QueryGateway.GetSettingsByUserID",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	settings, err := g.repo.GetSettingsByUserID(ctx, userID)
	if err != nil {
		g.fail(span, opGetSettingsByUserID, userID, err)
		return nil, err
	}
	g.record(span, opGetSettingsByUserID, settings != nil)
	return settings, nil
}

// GetUserByID returns the user record, or nil if it does not exist.
// It performs no authorization; callers must keep it off untrusted paths.
func (g *QueryGateway) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	ctx, span := g.tracer.Start(ctx, "QueryGateway.GetUserByID",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	user, err := g.repo.GetUserByID(ctx, userID)
	if err != nil {
		g.fail(span, opGetUserByID, userID, err)
		return nil, err
	}
	g.record(span, opGetUserByID, user != nil)
	return user, nil
}

func (g *QueryGateway) record(span trace.Span, op string, found bool) {
	outcome := metrics.OutcomeAbsent
	if found {
		outcome = metrics.OutcomeFound
	}
	span.SetAttributes(attribute.String("query.outcome", outcome))
	metrics.IncQuery(op, outcome)
}

func (g *QueryGateway) fail(span trace.Span, op, userID string, err error) {
	g.logger.Error("Query failed", zap.String("operation", op), zap.String("userId", userID), zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	metrics.IncQuery(op, metrics.OutcomeError)
}
