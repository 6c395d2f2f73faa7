// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/router/middleware"
)

type GroupRegister func(group *gin.RouterGroup) error

var groupRegisters []GroupRegister

func RegisterGroup(group GroupRegister) {
	groupRegisters = append(groupRegisters, group)
}

// ResetGroups clears the registered groups. Tests that build multiple
// engines need it; the server registers once and never does.
func ResetGroups() {
	groupRegisters = nil
}

// InitRouter wires the /v1 group with the standard middleware chain and
// hands it to every registered handler group. Auth runs per-route, not
// here: catalog and cluster-stats reads are public.
func InitRouter(engine *gin.Engine, cfg *config.Config) error {
	g := engine.Group("/v1")
	g.Use(middleware.HandleMetrics())
	g.Use(middleware.HandleLogging())
	g.Use(middleware.HandleErrors())
	g.Use(middleware.CorsMiddleware(cfg.Auth.CORSOrigins))

	for _, group := range groupRegisters {
		if err := group(g); err != nil {
			return err
		}
	}
	return nil
}
