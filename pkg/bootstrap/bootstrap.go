// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package bootstrap assembles the whole service: config, clients,
// subsystems, routes and background tasks, in that order. Everything is
// constructed once and passed by value; there are no import-time side
// effects to untangle.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/AMD-AGI/primus-papi/pkg/api"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/clients/llmgw"
	"github.com/AMD-AGI/primus-papi/pkg/clients/mailer"
	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/clients/oscar"
	"github.com/AMD-AGI/primus-papi/pkg/clients/registry"
	"github.com/AMD-AGI/primus-papi/pkg/clients/secretstore"
	"github.com/AMD-AGI/primus-papi/pkg/clients/sourcehost"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/deployment"
	"github.com/AMD-AGI/primus-papi/pkg/inference"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
	"github.com/AMD-AGI/primus-papi/pkg/router"
	"github.com/AMD-AGI/primus-papi/pkg/secrets"
	"github.com/AMD-AGI/primus-papi/pkg/server"
	"github.com/AMD-AGI/primus-papi/pkg/snapshot"
	"github.com/AMD-AGI/primus-papi/pkg/stats"
	"github.com/AMD-AGI/primus-papi/pkg/tryme"
)

// Exit codes the process contract promises.
const (
	ExitOK         = 0
	ExitBadConfig  = 1
	ExitBadEnviron = 2
)

// StartupError carries the exit code a failure class maps to.
type StartupError struct {
	Code int
	Err  error
}

func (e *StartupError) Error() string {
	return e.Err.Error()
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// StartServer runs the service until the context or a signal stops it.
func StartServer(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return &StartupError{Code: ExitBadConfig, Err: err}
	}
	if cfg.Log != nil {
		if err := log.InitGlobalLogger(cfg.Log); err != nil {
			return &StartupError{Code: ExitBadConfig, Err: err}
		}
	}
	env, err := config.LoadEnv()
	if err != nil {
		return &StartupError{Code: ExitBadEnviron, Err: err}
	}
	if !env.IsProd {
		log.Warn("running in dev mode: missing secrets are tolerated, external probes skipped")
	}

	profiles, err := config.BuildVOProfiles(cfg, env.DashboardURL)
	if err != nil {
		return &StartupError{Code: ExitBadConfig, Err: err}
	}

	scheduler, err := nomad.NewClient(env.NomadAddr, nomad.TLSFiles{
		CACert:     env.NomadCACert,
		ClientCert: env.NomadClientCert,
		ClientKey:  env.NomadClientKey,
	})
	if err != nil {
		return &StartupError{Code: ExitBadEnviron, Err: err}
	}

	allowlist := catalog.NewImageAllowlist(cfg.Catalog.AllowedImagePrefixes)
	source := catalog.NewGitSource(
		sourcehost.NewClient(env.GithubToken),
		cfg.Catalog.Repos,
		allowlist,
		cfg.Catalog.GPUModels,
	)
	cached := catalog.NewCached(source)

	broker := secrets.NewBroker(secretstore.NewClient(cfg.Secrets.Address, env.SecretsToken), profiles)
	ledger := quota.NewLedger(scheduler, cfg.Quotas, profiles)
	mail := mailer.NewClient(cfg.Mail.BridgeURL, env.MailingToken, cfg.Mail.From, env.IsProd && cfg.Mail.BridgeURL != "")

	deployments := deployment.NewController(scheduler, cached, ledger, broker, allowlist, profiles, env, cfg.TryMe)
	tryMeController := tryme.NewController(deployments, cached, ledger, cfg.TryMe)

	registryClient := registry.NewClient(cfg.Snapshots.Registry, cfg.Snapshots.Project, cfg.Snapshots.RobotUser, env.HarborRobotPassword)
	snapshots := snapshot.NewOrchestrator(scheduler, registryClient, profiles, cfg.Snapshots, env, mail)

	oscarClients := map[string]*oscar.Client{}
	for vo, cluster := range cfg.Oscar.Clusters {
		if cluster.Endpoint != "" {
			oscarClients[vo] = oscar.NewClient(cluster.Endpoint, cluster.ClusterID, cluster.Token)
		}
	}
	inferenceController := inference.NewController(oscarClients, allowlist)

	aggregator := stats.NewAggregator(scheduler, profiles, cfg.Stats.PollInterval())
	history := stats.NewHistory(env.AccountingPath)
	llm := llmgw.NewClient(cfg.LLM.GatewayURL, env.LLMAPIKey)

	apiServer := api.NewServer(cfg, cached, deployments, tryMeController, snapshots,
		inferenceController, broker, ledger, aggregator, history, llm)
	router.RegisterGroup(apiServer.RegisterRoutes)

	if env.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if env.ForwardedAllowIPs != "" {
		if err := engine.SetTrustedProxies(strings.Split(env.ForwardedAllowIPs, ",")); err != nil {
			return &StartupError{Code: ExitBadEnviron, Err: err}
		}
	}
	server.RegisterHealth(engine)
	if err := router.InitRouter(engine, cfg); err != nil {
		return &StartupError{Code: ExitBadConfig, Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// background tasks: the stats poller and the hourly catalog refresh
	go aggregator.Run(ctx)
	refresher := cron.New()
	if _, err := refresher.AddFunc(cfg.Catalog.GetRefreshCron(), func() {
		if err := cached.Refresh(context.Background(), "", ""); err != nil {
			log.Warnf("periodic catalog refresh failed: %v", err)
		}
	}); err != nil {
		return &StartupError{Code: ExitBadConfig, Err: fmt.Errorf("bad catalog refresh schedule: %w", err)}
	}
	refresher.Start()
	defer refresher.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HttpPort),
		Handler: engine,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("platform API listening on :%d", cfg.HttpPort)
		errCh <- httpServer.ListenAndServe()
	}()
	server.SetReady(true)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return &StartupError{Code: ExitBadConfig, Err: err}
		}
	case <-ctx.Done():
		log.Info("shutting down")
		server.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown drain incomplete: %v", err)
		}
	}
	return nil
}
