// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package snapshot commits running deployments to registry images. The
// commit itself happens inside a scheduler batch job pinned to the node
// hosting the target allocation; this orchestrator admits, renders and
// submits that job, and projects records back out of the registry.
package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/clients/mailer"
	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/clients/registry"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/deployment"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
)

const gib = int64(1) << 30

type Orchestrator struct {
	scheduler *nomad.Client
	registry  *registry.Client
	profiles  map[string]config.VOProfile
	cfg       config.SnapshotConfig
	env       *config.Env
	mail      *mailer.Client
}

func NewOrchestrator(scheduler *nomad.Client, reg *registry.Client, profiles map[string]config.VOProfile, cfg config.SnapshotConfig, env *config.Env, mail *mailer.Client) *Orchestrator {
	return &Orchestrator{
		scheduler: scheduler,
		registry:  reg,
		profiles:  profiles,
		cfg:       cfg,
		env:       env,
		mail:      mail,
	}
}

func (o *Orchestrator) maxContainerBytes() int64 {
	if o.cfg.MaxContainerGiB > 0 {
		return o.cfg.MaxContainerGiB * gib
	}
	return 10 * gib
}

func (o *Orchestrator) userQuotaBytes() int64 {
	if o.cfg.UserQuotaGiB > 0 {
		return o.cfg.UserQuotaGiB * gib
	}
	return 15 * gib
}

// Create admits and submits one snapshot job. The snapshot ID is
// jobID_timestamp; two snapshots of the same job in the same second
// collapse onto the same tag, last writer wins.
func (o *Orchestrator) Create(ctx context.Context, user *auth.UserInfo, vo string, req model.SnapshotRequest) (*model.SnapshotRecord, error) {
	profile, ok := o.profiles[vo]
	if !ok || !user.MemberOf(vo) {
		return nil, errors.NewForbidden("no membership in " + vo)
	}

	job, err := o.scheduler.GetJob(ctx, profile.Namespace, req.UUID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFound("no deployment " + req.UUID)
		}
		return nil, err
	}
	if job.Meta[quota.MetaOwner] != user.Subject {
		return nil, errors.NewForbidden("deployment belongs to another user")
	}
	if job.Status != nomad.JobStatusRunning {
		return nil, errors.NewBadRequest("deployment is not running")
	}

	allocs, err := o.scheduler.JobAllocations(ctx, profile.Namespace, req.UUID)
	if err != nil {
		return nil, err
	}
	target := runningAllocation(allocs)
	if target == nil {
		return nil, errors.NewBadRequest("deployment has no running allocation")
	}

	// size gate: the worker re-checks on the node, but an obviously
	// oversized container is rejected before a job is ever submitted
	diskUsed, err := o.scheduler.AllocDiskUsage(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if diskUsed > o.maxContainerBytes() {
		return nil, errors.NewBadRequest(fmt.Sprintf("too-large: container filesystem is %d GiB, cap is %d GiB",
			diskUsed/gib, o.maxContainerBytes()/gib)).
			WithDetail("reason", "too-large")
	}

	stored, err := o.registry.StoredBytes(ctx, user.Subject)
	if err != nil {
		return nil, err
	}
	if stored+diskUsed > o.userQuotaBytes() {
		return nil, errors.NewQuotaExceeded("snapshot-storage", o.userQuotaBytes()/gib, stored/gib)
	}

	createdAt := time.Now().UTC()
	snapshotID := fmt.Sprintf("%s_%d", req.UUID, createdAt.Unix())
	workerUUID := uuid.New().String()

	values := map[string]string{
		"JOB_UUID":          workerUUID,
		"NAMESPACE":         profile.Namespace,
		"PRIORITY":          strconv.Itoa(deployment.PriorityFor(model.KindSnapshot)),
		"TARGET_NODE_ID":    target.NodeID,
		"TARGET_JOB_ID":     req.UUID,
		"SNAPSHOT_ID":       snapshotID,
		"OWNER":             user.Subject,
		"OWNER_NAME":        user.Name,
		"OWNER_EMAIL":       user.Email,
		"VO":                vo,
		"WORKLOAD_NAME":     job.Meta[quota.MetaWorkload],
		"TITLE":             req.Title,
		"DESCRIPTION":       req.Description,
		"MAX_SIZE_GIB":      strconv.FormatInt(o.maxContainerBytes()/gib, 10),
		"REGISTRY_URL":      o.cfg.Registry,
		"REGISTRY_PROJECT":  o.cfg.Project,
		"REGISTRY_REPO":     user.Subject,
		"REGISTRY_USER":     o.cfg.RobotUser,
		"REGISTRY_PASSWORD": o.env.HarborRobotPassword,
	}

	tpl, err := deployment.TemplateFor(model.KindSnapshot)
	if err != nil {
		return nil, err
	}
	rendered, err := tpl.Render(values)
	if err != nil {
		return nil, err
	}
	parsed, err := o.scheduler.ParseJob(ctx, rendered)
	if err != nil {
		return nil, err
	}
	if _, err := o.scheduler.RegisterJob(ctx, profile.Namespace, parsed); err != nil {
		return nil, err
	}

	if o.mail != nil && user.Email != "" {
		subject := fmt.Sprintf("Snapshot %s submitted", snapshotID)
		body := fmt.Sprintf("Your snapshot of deployment %s was submitted and will appear in the registry shortly.", req.UUID)
		if mailErr := o.mail.Send(ctx, []string{user.Email}, subject, body); mailErr != nil {
			log.Warnf("snapshot mail to %s failed: %v", user.Email, mailErr)
		}
	}

	return &model.SnapshotRecord{
		SnapshotID:  snapshotID,
		Owner:       user.Subject,
		VO:          vo,
		Title:       req.Title,
		Description: req.Description,
		ImageTag:    snapshotID,
		CreatedAt:   createdAt,
		Status:      "submitted",
	}, nil
}

func runningAllocation(allocs []nomad.AllocationListStub) *nomad.AllocationListStub {
	var newest *nomad.AllocationListStub
	for i := range allocs {
		alloc := &allocs[i]
		if alloc.ClientStatus != nomad.AllocClientStatusRunning {
			continue
		}
		if newest == nil || alloc.CreateTime > newest.CreateTime {
			newest = alloc
		}
	}
	return newest
}

// List projects the user's stored snapshots out of the registry's label
// data.
func (o *Orchestrator) List(ctx context.Context, user *auth.UserInfo) ([]model.SnapshotRecord, error) {
	artifacts, err := o.registry.ListArtifacts(ctx, user.Subject)
	if err != nil {
		return nil, err
	}
	records := []model.SnapshotRecord{}
	for _, artifact := range artifacts {
		labels := map[string]string{}
		for _, label := range artifact.Labels {
			labels[label.Name] = label.Value
		}
		for _, tag := range artifact.Tags {
			records = append(records, model.SnapshotRecord{
				SnapshotID:  tag.Name,
				Owner:       user.Subject,
				VO:          labels["papi.vo"],
				Title:       labels["papi.title"],
				Description: labels["papi.description"],
				ImageTag:    tag.Name,
				CreatedAt:   artifact.PushTime,
				SizeBytes:   artifact.Size,
				Status:      "stored",
			})
		}
	}
	return records, nil
}

// Delete removes one snapshot tag. The repository is the caller's own
// subject, so cross-user deletion cannot be expressed.
func (o *Orchestrator) Delete(ctx context.Context, user *auth.UserInfo, snapshotID string) error {
	return o.registry.DeleteTag(ctx, user.Subject, snapshotID)
}
