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

// queryByIDRequest is the body shared by the query endpoints.
type queryByIDRequest struct {
	ID string `json:"_id" binding:"required"`
}

// HandleQuerySettings returns the settings for {"_id": userId}, or null if none exist.
// Callers may only query their own record.
func (h *HttpHandlers) HandleQuerySettings(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleQuerySettings")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		// This should not happen if middleware is configured correctly
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	var req queryByIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "_id is required"})
		return
	}
	if req.ID != userID {
		h.logger.Warn("Settings query for another user", zap.String("caller", userID), zap.String("requested", req.ID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	settings, err := h.queryGateway.GetSettingsByUserID(ctx, req.ID)
	if err != nil {
		h.logger.Error("Failed to query settings", zap.Error(err), zap.String("userId", req.ID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to query settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// HandleGetSettings returns the caller's settings, or null if not yet provisioned.
func (h *HttpHandlers) HandleGetSettings(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGetSettings")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	settings, err := h.queryGateway.GetSettingsByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get settings", zap.Error(err), zap.String("userId", userID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// HandleProvisionSettings creates the caller's default settings if they do not exist yet.
func (h *HttpHandlers) HandleProvisionSettings(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleProvisionSettings")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	settings, created, err := h.settingsService.Provision(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to provision settings", zap.Error(err), zap.String("userId", userID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision settings"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"settings": settings})
}

// HandleUpdateSettings applies a partial update to the caller's settings.
func (h *HttpHandlers) HandleUpdateSettings(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdateSettings")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	var req service.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	settings, err := h.settingsService.Update(ctx, userID, req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to update settings", zap.Error(err), zap.String("userId", userID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}
	if settings == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Settings not provisioned"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// HandleDeleteSettings removes the caller's settings.
func (h *HttpHandlers) HandleDeleteSettings(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeleteSettings")
	defer span.End()

	userID, ok := GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user from context"})
		return
	}

	if err := h.settingsService.Delete(ctx, userID); err != nil {
		h.logger.Error("Failed to delete settings", zap.Error(err), zap.String("userId", userID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete settings"})
		return
	}
	c.Status(http.StatusNoContent)
}
