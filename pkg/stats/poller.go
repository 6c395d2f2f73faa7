// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

var (
	pollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papi_stats_poll_failures_total",
		Help: "Cluster stats polls that failed and kept the previous snapshot.",
	})
	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "papi_stats_poll_duration_seconds",
		Help:    "Cluster stats poll latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Aggregator polls the scheduler on an interval and swaps an immutable
// snapshot atomically. Readers never block; a failed poll keeps the last
// good snapshot.
type Aggregator struct {
	scheduler *nomad.Client
	profiles  map[string]config.VOProfile
	interval  time.Duration
	latest    atomic.Pointer[model.ClusterSnapshot]
}

func NewAggregator(scheduler *nomad.Client, profiles map[string]config.VOProfile, interval time.Duration) *Aggregator {
	return &Aggregator{
		scheduler: scheduler,
		profiles:  profiles,
		interval:  interval,
	}
}

// Latest returns the last good snapshot, or nil before the first
// successful poll.
func (a *Aggregator) Latest() *model.ClusterSnapshot {
	return a.latest.Load()
}

// Run polls until the context ends. The first poll happens immediately so
// the stats API is warm as soon as the server accepts traffic.
func (a *Aggregator) Run(ctx context.Context) {
	a.pollOnce(ctx)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

func (a *Aggregator) pollOnce(ctx context.Context) {
	start := time.Now()
	snapshot, err := a.Poll(ctx)
	pollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		pollFailures.Inc()
		log.Warnf("cluster stats poll failed, keeping previous snapshot: %v", err)
		return
	}
	a.latest.Store(snapshot)
}

// Poll performs one full read of nodes, jobs and allocations.
func (a *Aggregator) Poll(ctx context.Context) (*model.ClusterSnapshot, error) {
	nodes, err := a.scheduler.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	jobsByVO := map[string][]nomad.JobListStub{}
	allocsByVO := map[string][]nomad.AllocationListStub{}
	for vo, profile := range a.profiles {
		jobs, err := a.scheduler.ListJobs(ctx, profile.Namespace)
		if err != nil {
			return nil, errors.NewBackendError("job poll for " + vo + " failed").WithError(err)
		}
		jobsByVO[vo] = jobs

		allocs, err := a.scheduler.ListAllocations(ctx, profile.Namespace)
		if err != nil {
			return nil, errors.NewBackendError("allocation poll for " + vo + " failed").WithError(err)
		}
		allocsByVO[vo] = allocs
	}

	snapshot := BuildSnapshot(nodes, jobsByVO, allocsByVO, a.profiles)
	snapshot.PolledAt = time.Now().UTC()
	return snapshot, nil
}
