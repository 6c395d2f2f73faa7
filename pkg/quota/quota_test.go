// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

func testProfiles() map[string]config.VOProfile {
	return map[string]config.VOProfile{
		"vo.a": {Name: "vo.a", Namespace: "ns-a", Domain: "a.deploy.example"},
	}
}

func jobStub(id, owner, kind, status string, res model.Resources) nomad.JobListStub {
	return nomad.JobListStub{
		ID:     id,
		Status: status,
		Meta: map[string]string{
			MetaOwner:    owner,
			MetaKind:     kind,
			MetaCPUs:     jsonNumber(res.CPUs),
			MetaGPUs:     jsonNumber(res.GPUs),
			MetaMemoryMB: jsonNumber(res.MemoryMB),
			MetaDiskMB:   jsonNumber(res.DiskMB),
		},
	}
}

func jsonNumber(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

func newLedger(t *testing.T, jobs []nomad.JobListStub, caps config.QuotaConfig) *Ledger {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/jobs", r.URL.Path)
		_ = json.NewEncoder(w).Encode(jobs)
	}))
	t.Cleanup(server.Close)
	client, err := nomad.NewClient(server.URL, nomad.TLSFiles{})
	require.NoError(t, err)
	return NewLedger(client, caps, testProfiles())
}

func TestUsage_SumsOwnedLiveJobs(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 4, GPUs: 1, MemoryMB: 8000, DiskMB: 10000}),
		jobStub("j2", "alice@x", "module", nomad.JobStatusPending, model.Resources{CPUs: 2, MemoryMB: 4000, DiskMB: 5000}),
		jobStub("j3", "bob@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 8, GPUs: 2}),
		jobStub("j4", "alice@x", "module", nomad.JobStatusDead, model.Resources{CPUs: 16, GPUs: 4}),
	}
	ledger := newLedger(t, jobs, config.QuotaConfig{})

	usage, err := ledger.Usage(context.Background(), "alice@x", "vo.a")
	require.NoError(t, err)
	assert.Equal(t, int64(6), usage.CPUs)
	assert.Equal(t, int64(1), usage.GPUs)
	assert.Equal(t, int64(12000), usage.MemoryMB)
	assert.Equal(t, int64(15000), usage.DiskMB)
	assert.Equal(t, int64(2), usage.Deployments)
}

func TestUsage_CountDeadPolicy(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusDead, model.Resources{CPUs: 16, GPUs: 4}),
	}
	ledger := newLedger(t, jobs, config.QuotaConfig{CountDead: true})

	usage, err := ledger.Usage(context.Background(), "alice@x", "vo.a")
	require.NoError(t, err)
	assert.Equal(t, int64(16), usage.CPUs)
	assert.Equal(t, int64(1), usage.Deployments)
}

func TestCheck_GPUOverflowFirst(t *testing.T) {
	// alice holds 1 GPU and lots of CPU; both GPU and CPU would overflow,
	// GPU must be reported
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 15, GPUs: 1}),
	}
	caps := config.QuotaConfig{
		GPUPerUser: 1,
		PerUser: map[string]config.ResourceCaps{
			"vo.a": {CPUs: 16, GPUs: 2, MemoryMB: 64000, DiskMB: 100000, Deployments: 4},
		},
	}
	ledger := newLedger(t, jobs, caps)

	err := ledger.Check(context.Background(), "alice@x", "vo.a", model.KindModule, model.Resources{CPUs: 4, GPUs: 1})
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	details := err.(*errors.Error).Details
	assert.Equal(t, "GPU", details["resource"])
	assert.Equal(t, int64(1), details["limit"])
	assert.Equal(t, int64(1), details["current"])
}

func TestCheck_DeploymentCountLast(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 1}),
		jobStub("j2", "alice@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 1}),
	}
	caps := config.QuotaConfig{
		PerUser: map[string]config.ResourceCaps{
			"vo.a": {CPUs: 16, MemoryMB: 64000, DiskMB: 100000, Deployments: 2},
		},
	}
	ledger := newLedger(t, jobs, caps)

	err := ledger.Check(context.Background(), "alice@x", "vo.a", model.KindModule, model.Resources{CPUs: 1})
	require.Error(t, err)
	assert.Equal(t, "deployments", err.(*errors.Error).Details["resource"])
}

func TestCheck_Monotonic(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusRunning, model.Resources{CPUs: 8, MemoryMB: 32000}),
	}
	caps := config.QuotaConfig{
		PerUser: map[string]config.ResourceCaps{
			"vo.a": {CPUs: 16, MemoryMB: 64000, DiskMB: 100000, Deployments: 4},
		},
	}
	ledger := newLedger(t, jobs, caps)
	ctx := context.Background()

	larger := model.Resources{CPUs: 8, MemoryMB: 32000, DiskMB: 50000}
	require.NoError(t, ledger.Check(ctx, "alice@x", "vo.a", model.KindModule, larger))

	// componentwise smaller request must also pass
	smaller := model.Resources{CPUs: 4, MemoryMB: 16000, DiskMB: 25000}
	require.NoError(t, ledger.Check(ctx, "alice@x", "vo.a", model.KindModule, smaller))
}

func TestCheck_VOCap(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "module", nomad.JobStatusRunning, model.Resources{GPUs: 3}),
		jobStub("j2", "bob@x", "module", nomad.JobStatusRunning, model.Resources{GPUs: 4}),
	}
	caps := config.QuotaConfig{
		PerUser: map[string]config.ResourceCaps{
			"vo.a": {GPUs: 4},
		},
		PerVO: map[string]config.ResourceCaps{
			"vo.a": {GPUs: 8},
		},
	}
	ledger := newLedger(t, jobs, caps)

	// alice is under her own cap (3+1 <= 4) and the VO total 7+1 <= 8 fits;
	// asking for 2 overflows (3+2 > 4 for her, 7+2 > 8 for the VO)
	require.NoError(t, ledger.Check(context.Background(), "alice@x", "vo.a", model.KindModule, model.Resources{GPUs: 1}))
	err := ledger.Check(context.Background(), "alice@x", "vo.a", model.KindModule, model.Resources{GPUs: 2})
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
}

func TestCountKind(t *testing.T) {
	jobs := []nomad.JobListStub{
		jobStub("j1", "alice@x", "try-me", nomad.JobStatusRunning, model.Resources{}),
		jobStub("j2", "alice@x", "try-me", nomad.JobStatusDead, model.Resources{}),
		jobStub("j3", "bob@x", "try-me", nomad.JobStatusRunning, model.Resources{}),
		jobStub("j4", "alice@x", "module", nomad.JobStatusRunning, model.Resources{}),
	}
	ledger := newLedger(t, jobs, config.QuotaConfig{})

	userCount, voCount, err := ledger.CountKind(context.Background(), "alice@x", "vo.a", model.KindTryMe)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userCount)
	assert.Equal(t, int64(2), voCount)
}
