// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the contract routes with the router.
//
// Description:
//
//	Registers all /contracts/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	GET  /v1/contracts/health - Catalog status
//	GET  /v1/contracts/types - Declared types
//	GET  /v1/contracts/analysis - Analyze a member (type, member, inherit)
//	GET  /v1/contracts/report - Analyze the whole catalog (inherit)
//	POST /v1/contracts/reload - Reload the catalog file
//	GET  /v1/contracts/events - Reload events over a WebSocket
//
// Example:
//
//	service, _ := contract.NewService(cfg)
//	v1 := router.Group("/v1")
//	contract.RegisterRoutes(v1, contract.NewHandlers(service))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	contracts := rg.Group("/contracts")
	{
		contracts.GET("/health", handlers.HandleHealth)
		contracts.GET("/types", handlers.HandleTypes)
		contracts.GET("/analysis", handlers.HandleAnalysis)
		contracts.GET("/report", handlers.HandleReport)
		contracts.POST("/reload", handlers.HandleReload)
		contracts.GET("/events", handlers.HandleEvents)
	}
}
