/*
 * Copyright 2025 blockarchitech
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package handler

import (
	"blockarchitech.com/scheduler/internal/auth"
	"blockarchitech.com/scheduler/internal/config"
	"blockarchitech.com/scheduler/internal/service"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TokenVerifier validates caller session tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// HttpHandlers holds application-wide state and dependencies.
type HttpHandlers struct {
	logger          *zap.Logger
	config          *config.Config
	verifier        TokenVerifier
	queryGateway    *service.QueryGateway
	settingsService *service.SettingsService
	integrations    *service.IntegrationService
	Tracer          trace.Tracer
}

// NewHttpHandlers creates a new HttpHandlers instance.
func NewHttpHandlers(
	logger *zap.Logger,
	cfg *config.Config,
	verifier TokenVerifier,
	queryGateway *service.QueryGateway,
	settingsService *service.SettingsService,
	integrations *service.IntegrationService,
	tracer trace.Tracer,
) *HttpHandlers {
	return &HttpHandlers{
		logger:          logger.Named("http_handler"),
		config:          cfg,
		verifier:        verifier,
		queryGateway:    queryGateway,
		settingsService: settingsService,
		integrations:    integrations,
		Tracer:          tracer,
	}
}
