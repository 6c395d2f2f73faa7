// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package api holds the HTTP handlers. One Server value carries every
// subsystem handle; nothing is reached through globals.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/clients/llmgw"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/deployment"
	"github.com/AMD-AGI/primus-papi/pkg/inference"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
	"github.com/AMD-AGI/primus-papi/pkg/router/middleware"
	"github.com/AMD-AGI/primus-papi/pkg/secrets"
	"github.com/AMD-AGI/primus-papi/pkg/snapshot"
	"github.com/AMD-AGI/primus-papi/pkg/stats"
	"github.com/AMD-AGI/primus-papi/pkg/tryme"
)

type Server struct {
	cfg         *config.Config
	catalog     catalog.Catalog
	deployments *deployment.Controller
	tryMe       *tryme.Controller
	snapshots   *snapshot.Orchestrator
	inference   *inference.Controller
	secrets     *secrets.Broker
	ledger      *quota.Ledger
	aggregator  *stats.Aggregator
	history     *stats.History
	llm         *llmgw.Client
}

func NewServer(
	cfg *config.Config,
	cat catalog.Catalog,
	deployments *deployment.Controller,
	tryMe *tryme.Controller,
	snapshots *snapshot.Orchestrator,
	inferenceController *inference.Controller,
	broker *secrets.Broker,
	ledger *quota.Ledger,
	aggregator *stats.Aggregator,
	history *stats.History,
	llm *llmgw.Client,
) *Server {
	return &Server{
		cfg:         cfg,
		catalog:     cat,
		deployments: deployments,
		tryMe:       tryMe,
		snapshots:   snapshots,
		inference:   inferenceController,
		secrets:     broker,
		ledger:      ledger,
		aggregator:  aggregator,
		history:     history,
		llm:         llm,
	}
}

// RegisterRoutes wires the /v1 surface. Catalog reads, the LLM model list
// and cluster stats are public; everything else takes the auth middleware.
func (s *Server) RegisterRoutes(group *gin.RouterGroup) error {
	authed := middleware.HandleAuth(s.cfg.Auth.OP, s.cfg.Auth.VO)

	catalogGroup := group.Group("/catalog")
	{
		catalogGroup.POST("/refresh", authed, s.refreshCatalog)
		catalogGroup.GET("/:kind", s.listCatalog)
		// the router cannot mix a static "detail" with the :name param at
		// the same depth, so detail rides the :name slot
		catalogGroup.GET("/:kind/:name", s.detailCatalog)
		catalogGroup.GET("/:kind/:name/metadata", s.catalogMetadata)
		catalogGroup.GET("/:kind/:name/config", s.catalogConfig)
	}

	deploymentGroup := group.Group("/deployments", authed)
	{
		deploymentGroup.GET("/:kind", s.listDeployments)
		deploymentGroup.POST("/:kind", s.createDeployment)
		deploymentGroup.GET("/:kind/:uuid", s.getDeployment)
		deploymentGroup.DELETE("/:kind/:uuid", s.deleteDeployment)
	}

	tryMeGroup := group.Group("/try_me", authed)
	{
		tryMeGroup.GET("/:kind", s.listTryMe)
		tryMeGroup.POST("/:kind", s.createTryMe)
		tryMeGroup.DELETE("/:kind/:uuid", s.deleteTryMe)
	}

	inferenceGroup := group.Group("/inference", authed)
	{
		inferenceGroup.GET("/services", s.listServices)
		inferenceGroup.POST("/services", s.createService)
		inferenceGroup.PUT("/services", s.updateService)
		inferenceGroup.DELETE("/services/:name", s.deleteService)
		inferenceGroup.GET("/services/:name/logs", s.serviceLogs)
	}

	snapshotGroup := group.Group("/snapshots", authed)
	{
		snapshotGroup.GET("", s.listSnapshots)
		snapshotGroup.POST("", s.createSnapshot)
		snapshotGroup.DELETE("/:id", s.deleteSnapshot)
	}

	secretGroup := group.Group("/secrets", authed)
	{
		secretGroup.GET("", s.listSecrets)
		secretGroup.POST("", s.putSecret)
		secretGroup.DELETE("", s.deleteSecret)
	}

	statsGroup := group.Group("/stats")
	{
		statsGroup.GET("/cluster", s.clusterStats)
		statsGroup.GET("/deployments", authed, s.deploymentStats)
	}

	group.GET("/llm/models", s.listLLMModels)
	group.POST("/llm", authed, s.proxyLLM)
	return nil
}
