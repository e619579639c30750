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

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("unauthorized")

var allowedAlgorithms = []string{"RS256", "ES256"}

// Claims are the session token claims issued by the auth provider. Subject is the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the external auth provider.
type Verifier struct {
	keyfunc jwt.Keyfunc
	issuer  string
	logger  *zap.Logger
}

// NewVerifier creates a Verifier that resolves signing keys with kf.
// An empty issuer disables the iss check.
func NewVerifier(kf jwt.Keyfunc, issuer string, logger *zap.Logger) *Verifier {
	return &Verifier{
		keyfunc: kf,
		issuer:  issuer,
		logger:  logger.Named("jwt_verifier"),
	}
}

// NewJWKSVerifier creates a Verifier backed by the provider's JWKS endpoint.
// Keys are refreshed in the background until ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string, logger *zap.Logger) (*Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		),
		Timeout: 10 * time.Second,
	}
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:          client,
		Ctx:             ctx,
		RefreshInterval: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS storage: %w", err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	logger.Info("JWT verifier initialized", zap.String("jwksURL", jwksURL))
	return NewVerifier(jwks.Keyfunc, issuer, logger), nil
}

// Verify parses and validates a token and returns its claims.
// Every failure is reported as ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyfunc, opts...)
	if err != nil {
		v.logger.Debug("Token rejected", zap.Error(err))
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		v.logger.Warn("Token parsed but not valid")
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" {
		v.logger.Debug("Token missing subject claim")
		return nil, ErrUnauthorized
	}
	return claims, nil
}
