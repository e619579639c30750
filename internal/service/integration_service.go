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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"blockarchitech.com/scheduler/internal/models"
	"blockarchitech.com/scheduler/internal/repository"
	"blockarchitech.com/scheduler/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	ErrProviderNotConfigured = errors.New("integration provider is not configured")
	ErrInvalidState          = errors.New("invalid or expired oauth state")
	ErrTokenExchange         = errors.New("oauth code exchange failed")
)

const oauthStateTTL = 10 * time.Minute

// ConnectIntegrationRequest completes an OAuth authorization for one account.
type ConnectIntegrationRequest struct {
	Code      string `json:"code"`
	State     string `json:"state"`
	AccountID string `json:"accountId"`
}

func (r ConnectIntegrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required),
		validation.Field(&r.State, validation.Required),
		validation.Field(&r.AccountID, validation.Required, validation.Length(1, 320)),
	)
}

// oauthState binds an authorization round trip to one user and provider.
type oauthState struct {
	UserID   string `json:"u"`
	Provider string `json:"p"`
	Expires  int64  `json:"e"`
}

// IntegrationService runs the OAuth connect flow for calendar and conferencing
// providers and stores the resulting tokens on the user's settings.
type IntegrationService struct {
	repo       repository.Repository
	providers  map[string]*oauth2.Config
	secretKey  string
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
}

// NewIntegrationService creates a new IntegrationService. secretKey seals the
// OAuth state parameter and must be set whenever providers is non-empty.
func NewIntegrationService(repo repository.Repository, providers map[string]*oauth2.Config, secretKey string, tracer trace.Tracer, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{
		repo:      repo,
		providers: providers,
		secretKey: secretKey,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
		tracer: tracer,
		logger: logger.Named("integration_service"),
		now:    time.Now,
	}
}

// AuthorizeURL returns the provider consent URL for userID.
func (s *IntegrationService) AuthorizeURL(ctx context.Context, userID, provider string) (string, error) {
	_, span := s.tracer.Start(ctx, "IntegrationService.AuthorizeURL",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("integration.provider", provider)))
	defer span.End()

	cfg, ok := s.providers[provider]
	if !ok {
		return "", ErrProviderNotConfigured
	}

	state, err := s.sealState(oauthState{
		UserID:   userID,
		Provider: provider,
		Expires:  s.now().Add(oauthStateTTL).Unix(),
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// Connect exchanges an authorization code and stores the token on the matching
// integration, adding the integration if it is not listed yet. It returns nil
// settings when the user has not been provisioned.
func (s *IntegrationService) Connect(ctx context.Context, userID, provider string, req ConnectIntegrationRequest) (*models.Settings, error) {
	ctx, span := s.tracer.Start(ctx, "IntegrationService.Connect",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("integration.provider", provider)))
	defer span.End()

	cfg, ok := s.providers[provider]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.checkState(req.State, userID, provider); err != nil {
		s.logger.Warn("Rejected oauth state", zap.String("userId", userID), zap.String("provider", provider), zap.Error(err))
		return nil, ErrInvalidState
	}

	// The code is single use, so do not spend it on a user without settings.
	existing, err := s.repo.GetSettingsByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	token, err := cfg.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient), req.Code)
	if err != nil {
		s.logger.Error("Failed to exchange oauth code", zap.String("userId", userID), zap.String("provider", provider), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "token exchange failed")
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	span.SetAttributes(attribute.Bool("integration.token_exchanged", true))

	connected := models.Integration{
		Provider:    provider,
		AccountID:   req.AccountID,
		ConnectedAt: s.now().UTC(),
		Token:       token,
	}
	updated, err := s.repo.UpdateSettings(ctx, userID, func(current *models.Settings) error {
		return attachIntegration(current, connected)
	})
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("Connected integration", zap.String("userId", userID), zap.String("provider", provider))
	return updated, nil
}

// attachIntegration replaces the credentials of a listed account or appends a new one.
func attachIntegration(settings *models.Settings, in models.Integration) error {
	for i := range settings.Integrations {
		cur := &settings.Integrations[i]
		if cur.Provider == in.Provider && cur.AccountID == in.AccountID {
			cur.Token = in.Token
			cur.ConnectedAt = in.ConnectedAt
			return nil
		}
	}
	if len(settings.Integrations) >= MaxIntegrations {
		return fmt.Errorf("%w: integrations: the length must be no more than %d", ErrValidation, MaxIntegrations)
	}
	settings.Integrations = append(settings.Integrations, in)
	return nil
}

func (s *IntegrationService) sealState(st oauthState) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("failed to encode oauth state: %w", err)
	}
	sealed, err := utils.Encrypt(string(raw), s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to seal oauth state: %w", err)
	}
	return sealed, nil
}

func (s *IntegrationService) checkState(sealed, userID, provider string) error {
	raw, err := utils.Decrypt(sealed, s.secretKey)
	if err != nil {
		return err
	}
	var st oauthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return err
	}
	if st.UserID != userID || st.Provider != provider {
		return errors.New("state was issued for another user or provider")
	}
	if s.now().Unix() > st.Expires {
		return errors.New("state expired")
	}
	return nil
}
