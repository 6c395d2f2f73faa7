// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package deployment implements the create/read/delete lifecycle. The
// scheduler owns all deployment state; this controller renders, admits,
// submits and projects.
package deployment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
	"github.com/AMD-AGI/primus-papi/pkg/secrets"
)

const allocFetchParallelism = 8

type Controller struct {
	scheduler *nomad.Client
	catalog   catalog.Catalog
	ledger    *quota.Ledger
	secrets   *secrets.Broker
	allowlist *catalog.ImageAllowlist
	profiles  map[string]config.VOProfile
	env       *config.Env
	tryMe     config.TryMeConfig
}

func NewController(
	scheduler *nomad.Client,
	cat catalog.Catalog,
	ledger *quota.Ledger,
	broker *secrets.Broker,
	allowlist *catalog.ImageAllowlist,
	profiles map[string]config.VOProfile,
	env *config.Env,
	tryMe config.TryMeConfig,
) *Controller {
	return &Controller{
		scheduler: scheduler,
		catalog:   cat,
		ledger:    ledger,
		secrets:   broker,
		allowlist: allowlist,
		profiles:  profiles,
		env:       env,
		tryMe:     tryMe,
	}
}

func (c *Controller) profileFor(user *auth.UserInfo, vo string) (config.VOProfile, error) {
	profile, ok := c.profiles[vo]
	if !ok {
		return config.VOProfile{}, errors.NewForbidden("unknown virtual organization " + vo)
	}
	if !user.MemberOf(vo) {
		return config.VOProfile{}, errors.NewForbidden("no membership in " + vo)
	}
	return profile, nil
}

// Create runs the whole submit protocol: resolve, validate, admit,
// render, parse, register. The response carries the generated UUID and
// the predicted endpoints; nobody waits for the job to start.
func (c *Controller) Create(ctx context.Context, user *auth.UserInfo, vo string, kind model.Kind, name string, params catalog.Params) (*model.CreateResponse, error) {
	if _, err := c.profileFor(user, vo); err != nil {
		return nil, err
	}

	item, err := c.catalog.Metadata(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	schema, err := c.catalog.ConfigTemplate(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(params); err != nil {
		return nil, err
	}
	return c.Submit(ctx, user, vo, kind, item, schema.WithDefaults(params))
}

// Submit runs the lower half of the protocol on an already-validated,
// defaults-merged parameter map. The try-me controller enters here with
// its clamped envelope.
func (c *Controller) Submit(ctx context.Context, user *auth.UserInfo, vo string, kind model.Kind, item *model.CatalogItem, merged catalog.Params) (*model.CreateResponse, error) {
	profile, err := c.profileFor(user, vo)
	if err != nil {
		return nil, err
	}
	if err := validateImageOverride(c.allowlist, merged); err != nil {
		return nil, err
	}

	requested := requestedResources(merged)
	if err := c.ledger.Check(ctx, user.Subject, vo, kind, requested); err != nil {
		return nil, err
	}

	sub := submission{
		user:    user,
		profile: profile,
		item:    item,
		kind:    kind,
		params:  merged,
		uuid:    uuid.New().String(),
	}
	values, err := c.buildSubstitutions(ctx, sub)
	if err != nil {
		return nil, err
	}

	tpl, err := TemplateFor(kind)
	if err != nil {
		return nil, err
	}
	rendered, err := tpl.Render(values)
	if err != nil {
		return nil, err
	}

	job, err := c.scheduler.ParseJob(ctx, rendered)
	if err != nil {
		return nil, err
	}
	postProcessJob(job, values, requested)

	if _, err := c.scheduler.RegisterJob(ctx, profile.Namespace, job); err != nil {
		return nil, err
	}

	// the caller may be gone by now; a submitted job nobody knows the
	// UUID of would leak, so purge best-effort
	if ctx.Err() != nil {
		purgeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if purgeErr := c.scheduler.PurgeJob(purgeCtx, profile.Namespace, sub.uuid); purgeErr != nil {
			log.Warnf("purge of orphaned job %s failed: %v", sub.uuid, purgeErr)
		}
		return nil, errors.NewTimeout("request canceled during submit; job purged")
	}

	return &model.CreateResponse{
		UUID:      sub.uuid,
		Endpoints: PredictEndpoints(kind, values["HOSTNAME"], profile.Domain),
	}, nil
}

// postProcessJob finishes what textual substitution cannot express: GPU
// device pruning and model pinning, aux-task pruning, and the metadata
// stamp the ledger reads.
func postProcessJob(job *nomad.Job, values map[string]string, requested model.Resources) {
	// the job ID is the deployment UUID, whatever the template labeled
	job.ID = values["JOB_UUID"]
	job.Name = values["JOB_UUID"]
	if job.Meta == nil {
		job.Meta = map[string]string{}
	}
	for key, value := range metaStamp(values) {
		job.Meta[key] = value
	}

	for gi := range job.TaskGroups {
		group := &job.TaskGroups[gi]

		kept := group.Tasks[:0]
		for _, task := range group.Tasks {
			switch task.Name {
			case "storage_mount":
				if values["RCLONE_URL"] == "" {
					continue
				}
			case "dataset_download":
				if values["DATASETS"] == "" {
					continue
				}
			}
			kept = append(kept, task)
		}
		group.Tasks = kept

		for ti := range group.Tasks {
			task := &group.Tasks[ti]
			if task.Resources == nil {
				continue
			}
			devices := task.Resources.Devices[:0]
			for _, device := range task.Resources.Devices {
				if device.Count == 0 {
					continue
				}
				if requested.GPUModel != "" {
					device.Name = "amd/gpu/" + requested.GPUModel
				}
				devices = append(devices, device)
			}
			task.Resources.Devices = devices
		}
	}
}

// Get returns one deployment, owner-checked.
func (c *Controller) Get(ctx context.Context, user *auth.UserInfo, vo, jobID string) (*model.Deployment, error) {
	profile, err := c.profileFor(user, vo)
	if err != nil {
		return nil, err
	}
	job, err := c.scheduler.GetJob(ctx, profile.Namespace, jobID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFound("no deployment " + jobID)
		}
		return nil, err
	}
	if job.Meta[quota.MetaOwner] != user.Subject {
		return nil, errors.NewForbidden("deployment belongs to another user")
	}
	allocs, err := c.scheduler.JobAllocations(ctx, profile.Namespace, jobID)
	if err != nil {
		return nil, err
	}
	deployment := c.project(profile, job.ID, job.Status, job.Type, job.Meta, job.SubmitTime, allocs)
	return &deployment, nil
}

// List returns the caller's deployments across the requested VOs and
// kinds, status included.
func (c *Controller) List(ctx context.Context, user *auth.UserInfo, vo string, kinds []model.Kind) ([]model.Deployment, error) {
	vos := user.VOs
	if vo != "" {
		if _, err := c.profileFor(user, vo); err != nil {
			return nil, err
		}
		vos = []string{vo}
	}
	wantKind := map[model.Kind]bool{}
	for _, kind := range kinds {
		wantKind[kind] = true
	}

	deployments := []model.Deployment{}
	for _, member := range vos {
		profile, ok := c.profiles[member]
		if !ok {
			continue
		}
		jobs, err := c.scheduler.ListJobsByOwner(ctx, profile.Namespace, user.Subject)
		if err != nil {
			return nil, err
		}

		projected := make([]*model.Deployment, len(jobs))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(allocFetchParallelism)
		for i := range jobs {
			i := i
			job := jobs[i]
			if len(wantKind) > 0 && !wantKind[model.Kind(job.Meta[quota.MetaKind])] {
				continue
			}
			group.Go(func() error {
				allocs, err := c.scheduler.JobAllocations(groupCtx, profile.Namespace, job.ID)
				if err != nil {
					return err
				}
				deployment := c.project(profile, job.ID, job.Status, job.Type, job.Meta, job.SubmitTime, allocs)
				projected[i] = &deployment
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
		for _, deployment := range projected {
			if deployment != nil {
				deployments = append(deployments, *deployment)
			}
		}
	}
	return deployments, nil
}

// Delete verifies ownership then purges, whatever state the job is in.
func (c *Controller) Delete(ctx context.Context, user *auth.UserInfo, vo, jobID string) error {
	profile, err := c.profileFor(user, vo)
	if err != nil {
		return err
	}
	job, err := c.scheduler.GetJob(ctx, profile.Namespace, jobID)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.NewNotFound("no deployment " + jobID)
		}
		return err
	}
	if job.Meta[quota.MetaOwner] != user.Subject {
		return errors.NewForbidden("deployment belongs to another user")
	}
	return c.scheduler.PurgeJob(ctx, profile.Namespace, jobID)
}

// project assembles the user view from scheduler state.
func (c *Controller) project(profile config.VOProfile, jobID, jobStatus, jobType string, meta map[string]string, submitNanos int64, allocs []nomad.AllocationListStub) model.Deployment {
	status, errorMsg := DeriveStatus(jobStatus, jobType, allocs)
	kind := model.Kind(meta[quota.MetaKind])

	hostname := meta["hostname"]
	if hostname == "" {
		hostname = jobID
	}
	deployment := model.Deployment{
		UUID:         jobID,
		Owner:        meta[quota.MetaOwner],
		OwnerName:    meta[quota.MetaOwnerName],
		OwnerEmail:   meta[quota.MetaOwnerEmail],
		VO:           profile.Name,
		Kind:         kind,
		WorkloadName: meta[quota.MetaWorkload],
		Title:        meta[quota.MetaTitle],
		Hostname:     hostname,
		SubmitTime:   time.Unix(0, submitNanos).UTC(),
		Status:       status,
		ErrorMsg:     errorMsg,
		Endpoints:    PredictEndpoints(kind, hostname, profile.Domain),
		DashboardURL: profile.DashboardURL,
		Resources: model.Resources{
			CPUs:     metaInt64(meta, quota.MetaCPUs),
			GPUs:     metaInt64(meta, quota.MetaGPUs),
			MemoryMB: metaInt64(meta, quota.MetaMemoryMB),
			DiskMB:   metaInt64(meta, quota.MetaDiskMB),
		},
	}
	return deployment
}

func metaInt64(meta map[string]string, key string) int64 {
	var value int64
	for _, ch := range meta[key] {
		if ch < '0' || ch > '9' {
			return 0
		}
		value = value*10 + int64(ch-'0')
	}
	return value
}

// ConfirmEndpoints probes the scheduler's service discovery for a running
// deployment and reports which roles have a live registration. URLs are
// never computed from discovery, only confirmed by it; a failed probe
// counts as unconfirmed, not dead.
func (c *Controller) ConfirmEndpoints(ctx context.Context, profile config.VOProfile, deployment *model.Deployment) map[string]bool {
	live := map[string]bool{}
	if deployment.Status != model.StatusRunning {
		return live
	}
	for role := range deployment.Endpoints {
		regs, err := c.scheduler.ServiceRegistrations(ctx, profile.Namespace, deployment.Hostname+"-"+role)
		live[role] = err == nil && len(regs) > 0
	}
	return live
}
