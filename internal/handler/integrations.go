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

	"blockarchitech.com/scheduler/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleIntegrationAuthorize returns the provider consent URL for the caller.
// The client opens it and later posts the returned code to the connect endpoint.
func (h *HttpHandlers) HandleIntegrationAuthorize(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleIntegrationAuthorize")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	provider := c.Param("provider")
	authURL, err := h.integrations.AuthorizeURL(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, service.ErrProviderNotConfigured) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Unknown integration provider"})
			return
		}
		h.logger.Error("Failed to build authorize URL", zap.Error(err), zap.String("provider", provider))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start authorization"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": authURL})
}

// HandleIntegrationConnect exchanges an authorization code and stores the token.
func (h *HttpHandlers) HandleIntegrationConnect(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleIntegrationConnect")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	var req service.ConnectIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	provider := c.Param("provider")
	settings, err := h.integrations.Connect(ctx, userID, provider, req)
	switch {
	case errors.Is(err, service.ErrProviderNotConfigured):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Unknown integration provider"})
		return
	case errors.Is(err, service.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired state"})
		return
	case errors.Is(err, service.ErrTokenExchange):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Provider rejected the authorization code"})
		return
	case err != nil:
		h.logger.Error("Failed to connect integration", zap.Error(err), zap.String("userId", userID), zap.String("provider", provider))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect integration"})
		return
	}
	if settings == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Settings not provisioned"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
