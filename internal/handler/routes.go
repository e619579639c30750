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

import "github.com/gin-gonic/gin"

func (h *HttpHandlers) RegisterRoutes(router *gin.Engine) {
	router.Use(h.LoggerMiddleware())
	router.Use(h.CORSMiddleware())

	v1 := router.Group("/api/v1")
	v1.Use(h.AuthMiddleware())
	{
		v1.POST("/query/settings", h.HandleQuerySettings)

		settings := v1.Group("/settings")
		{
			settings.GET("", h.HandleGetSettings)
			settings.POST("", h.HandleProvisionSettings)
			settings.PATCH("", h.HandleUpdateSettings)
			settings.DELETE("", h.HandleDeleteSettings)
		}
	}

	// Server-to-server only; never exposed to app clients.
	internal := router.Group("/internal/v1")
	internal.Use(h.InternalAuthMiddleware())
	{
		internal.POST("/query/user", h.HandleQueryUser)
	}
}
