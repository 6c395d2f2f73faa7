// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package tryme serves short-lived anonymous demo deployments. A try-me
// job is a batch job with a hard CPU-only envelope, a wall-clock cap, and
// tight per-user/per-VO concurrency; everything else rides the deployment
// machinery.
package tryme

import (
	"context"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/deployment"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
)

type Controller struct {
	deployments *deployment.Controller
	catalog     catalog.Catalog
	ledger      *quota.Ledger
	caps        config.TryMeConfig
}

func NewController(deployments *deployment.Controller, cat catalog.Catalog, ledger *quota.Ledger, caps config.TryMeConfig) *Controller {
	return &Controller{deployments: deployments, catalog: cat, ledger: ledger, caps: caps}
}

// envelope is the fixed resource box every try-me job gets, whatever the
// workload recommends.
func (c *Controller) envelope() model.Resources {
	res := model.Resources{CPUs: 2, MemoryMB: 4000, DiskMB: 5000}
	if c.caps.CPUs > 0 {
		res.CPUs = c.caps.CPUs
	}
	if c.caps.MemoryMB > 0 {
		res.MemoryMB = c.caps.MemoryMB
	}
	if c.caps.DiskMB > 0 {
		res.DiskMB = c.caps.DiskMB
	}
	return res
}

// Create admits one demo under the concurrency caps and submits it. The
// workload is resolved from the module catalog; the try-me template and
// priority band are bound by the kind.
func (c *Controller) Create(ctx context.Context, user *auth.UserInfo, vo, name string) (*model.CreateResponse, error) {
	userCount, voCount, err := c.ledger.CountKind(ctx, user.Subject, vo, model.KindTryMe)
	if err != nil {
		return nil, err
	}
	if c.caps.PerUser > 0 && userCount >= c.caps.PerUser {
		return nil, errors.NewQuotaExceeded("tryme-concurrency", c.caps.PerUser, userCount)
	}
	if c.caps.PerVO > 0 && voCount >= c.caps.PerVO {
		return nil, errors.NewQuotaExceeded("tryme-concurrency", c.caps.PerVO, voCount)
	}

	item, err := c.catalog.Metadata(ctx, model.KindModule, name)
	if err != nil {
		return nil, err
	}

	envelope := c.envelope()
	defaultTag := "latest"
	if len(item.DockerTags) > 0 {
		defaultTag = item.DockerTags[0]
	}
	params := catalog.Params{
		"general": {
			"title":            "try-me " + item.Name,
			"docker_image":     item.DockerImage,
			"docker_tag":       defaultTag,
			"service":          "jupyter",
			"jupyter_password": "",
			"hostname":         "",
			"desc":             "",
		},
		"hardware": {
			"cpu_num": envelope.CPUs,
			"gpu_num": 0,
			"ram":     envelope.MemoryMB,
			"disk":    envelope.DiskMB,
		},
	}
	return c.deployments.Submit(ctx, user, vo, model.KindTryMe, item, params)
}

func (c *Controller) List(ctx context.Context, user *auth.UserInfo, vo string) ([]model.Deployment, error) {
	return c.deployments.List(ctx, user, vo, []model.Kind{model.KindTryMe})
}

func (c *Controller) Delete(ctx context.Context, user *auth.UserInfo, vo, jobID string) error {
	return c.deployments.Delete(ctx, user, vo, jobID)
}
