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

package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"blockarchitech.com/scheduler/internal/config"
	"blockarchitech.com/scheduler/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "userID"
)

// AuthMiddleware verifies the bearer token and stores the caller's user ID in the context.
func (h *HttpHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := h.Tracer.Start(c.Request.Context(), "AuthMiddleware")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		token, err := bearerToken(c.Request)
		if err != nil {
			h.logger.Warn("Missing or invalid authorization token", zap.Error(err))
			span.RecordError(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := h.verifier.Verify(token)
		if err != nil {
			h.logger.Warn("Token verification failed", zap.Error(err))
			span.RecordError(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userIDContextKey, claims.Subject)
		c.Next()
	}
}

// InternalAuthMiddleware guards server-to-server routes with a shared key.
// The routes do not exist when no key is configured.
func (h *HttpHandlers) InternalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.config.InternalAPIKey == "" {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		key := c.GetHeader(config.InternalKeyHeader)
		if key == "" || !utils.ConstantTimeEqual(key, h.config.InternalAPIKey) {
			h.logger.Warn("Rejected internal request", zap.String("path", c.Request.URL.Path), zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *HttpHandlers) LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		h.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (h *HttpHandlers) CORSMiddleware() gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, o := range utils.SplitAndTrim(h.config.CORSAllowedOrigins, ",") {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization,Content-Type")
				c.Header("Access-Control-Max-Age", "600")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := utils.SplitAndTrim(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	if parts[1] == "" {
		return "", errors.New("missing token in Authorization header")
	}
	return parts[1], nil
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	return userID, userID != ""
}
