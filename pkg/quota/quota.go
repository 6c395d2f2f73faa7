// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package quota implements admission accounting. The ledger holds no state
// of its own: every check re-reads the scheduler's live jobs, so it
// survives restarts and tolerates the documented submit race (the
// scheduler is the final arbiter at the cluster level).
package quota

import (
	"context"
	"strconv"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// Meta keys PAPI stamps on every job it renders; the ledger projects
// resource usage from them without fetching each job body.
const (
	MetaOwner      = "owner"
	MetaOwnerName  = "owner_name"
	MetaOwnerEmail = "owner_email"
	MetaVO         = "vo"
	MetaKind       = "kind"
	MetaWorkload   = "workload"
	MetaTitle      = "title"
	MetaCPUs       = "cpu_num"
	MetaGPUs       = "gpu_num"
	MetaMemoryMB   = "ram"
	MetaDiskMB     = "disk"
)

type Ledger struct {
	scheduler *nomad.Client
	caps      config.QuotaConfig
	profiles  map[string]config.VOProfile
}

func NewLedger(scheduler *nomad.Client, caps config.QuotaConfig, profiles map[string]config.VOProfile) *Ledger {
	return &Ledger{scheduler: scheduler, caps: caps, profiles: profiles}
}

// counted reports whether a job participates in quota accounting. Dead
// jobs awaiting purge only count when the count_dead policy switch is on.
func (l *Ledger) counted(job nomad.JobListStub) bool {
	if job.Status == nomad.JobStatusDead {
		return l.caps.CountDead
	}
	return true
}

// projectResources reads the resource stamp PAPI wrote at render time.
func projectResources(job nomad.JobListStub) model.Resources {
	return model.Resources{
		CPUs:     metaInt(job.Meta, MetaCPUs),
		GPUs:     metaInt(job.Meta, MetaGPUs),
		MemoryMB: metaInt(job.Meta, MetaMemoryMB),
		DiskMB:   metaInt(job.Meta, MetaDiskMB),
	}
}

func metaInt(meta map[string]string, key string) int64 {
	if meta == nil {
		return 0
	}
	value, err := strconv.ParseInt(meta[key], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// Usage computes the live totals of one user inside a VO.
func (l *Ledger) Usage(ctx context.Context, user, vo string) (*model.QuotaSnapshot, error) {
	profile, ok := l.profiles[vo]
	if !ok {
		return nil, errors.NewForbidden("unknown virtual organization " + vo)
	}
	jobs, err := l.scheduler.ListJobsByOwner(ctx, profile.Namespace, user)
	if err != nil {
		return nil, err
	}
	snapshot := &model.QuotaSnapshot{User: user, VO: vo}
	for _, job := range jobs {
		if !l.counted(job) {
			continue
		}
		snapshot.Add(projectResources(job))
	}
	return snapshot, nil
}

// voUsage sums every counted job in the VO's namespace, all owners.
func (l *Ledger) voUsage(ctx context.Context, vo string) (*model.QuotaSnapshot, error) {
	profile := l.profiles[vo]
	jobs, err := l.scheduler.ListJobs(ctx, profile.Namespace)
	if err != nil {
		return nil, err
	}
	snapshot := &model.QuotaSnapshot{VO: vo}
	for _, job := range jobs {
		if job.Meta[MetaOwner] == "" || !l.counted(job) {
			continue
		}
		snapshot.Add(projectResources(job))
	}
	return snapshot, nil
}

// Check admits or denies a request. Overflows are reported one at a time
// in a fixed order: GPU, CPU, RAM, disk, deployment count. The per-user
// GPU cap applies globally regardless of kind.
func (l *Ledger) Check(ctx context.Context, user, vo string, kind model.Kind, requested model.Resources) error {
	usage, err := l.Usage(ctx, user, vo)
	if err != nil {
		return err
	}

	if l.caps.GPUPerUser > 0 && usage.GPUs+requested.GPUs > l.caps.GPUPerUser {
		return errors.NewQuotaExceeded("GPU", l.caps.GPUPerUser, usage.GPUs)
	}

	caps := l.caps.UserCaps(vo)
	if err := checkCaps(caps, usage, requested); err != nil {
		return err
	}

	voCaps := l.caps.VOCaps(vo)
	if voCaps != (config.ResourceCaps{}) {
		voSnapshot, err := l.voUsage(ctx, vo)
		if err != nil {
			return err
		}
		if err := checkCaps(voCaps, voSnapshot, requested); err != nil {
			return err
		}
	}
	return nil
}

func checkCaps(caps config.ResourceCaps, usage *model.QuotaSnapshot, requested model.Resources) error {
	if caps.GPUs > 0 && usage.GPUs+requested.GPUs > caps.GPUs {
		return errors.NewQuotaExceeded("GPU", caps.GPUs, usage.GPUs)
	}
	if caps.CPUs > 0 && usage.CPUs+requested.CPUs > caps.CPUs {
		return errors.NewQuotaExceeded("CPU", caps.CPUs, usage.CPUs)
	}
	if caps.MemoryMB > 0 && usage.MemoryMB+requested.MemoryMB > caps.MemoryMB {
		return errors.NewQuotaExceeded("RAM", caps.MemoryMB, usage.MemoryMB)
	}
	if caps.DiskMB > 0 && usage.DiskMB+requested.DiskMB > caps.DiskMB {
		return errors.NewQuotaExceeded("disk", caps.DiskMB, usage.DiskMB)
	}
	if caps.Deployments > 0 && usage.Deployments+1 > caps.Deployments {
		return errors.NewQuotaExceeded("deployments", caps.Deployments, usage.Deployments)
	}
	return nil
}

// CountKind counts the live jobs of one kind, per user and across the
// whole VO. The try-me controller uses it for its concurrency caps.
func (l *Ledger) CountKind(ctx context.Context, user, vo string, kind model.Kind) (userCount, voCount int64, err error) {
	profile, ok := l.profiles[vo]
	if !ok {
		return 0, 0, errors.NewForbidden("unknown virtual organization " + vo)
	}
	jobs, err := l.scheduler.ListJobs(ctx, profile.Namespace)
	if err != nil {
		return 0, 0, err
	}
	for _, job := range jobs {
		if job.Meta[MetaKind] != string(kind) || job.Status == nomad.JobStatusDead {
			continue
		}
		voCount++
		if job.Meta[MetaOwner] == user {
			userCount++
		}
	}
	return userCount, voCount, nil
}
