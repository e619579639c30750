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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleQueryUser returns the user record for {"_id": userId}, or null.
// Mounted behind InternalAuthMiddleware only.
func (h *HttpHandlers) HandleQueryUser(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleQueryUser")
	defer span.End()

	var req queryByIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "_id is required"})
		return
	}

	user, err := h.queryGateway.GetUserByID(ctx, req.ID)
	if err != nil {
		h.logger.Error("Failed to query user", zap.Error(err), zap.String("userId", req.ID))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to query user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
