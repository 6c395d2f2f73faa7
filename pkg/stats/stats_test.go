// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

func readyNode(id string, cpuShares, memMB int64, gpus int64, voTag string) nomad.NodeListStub {
	node := nomad.NodeListStub{
		ID:                    id,
		Name:                  id,
		Status:                nomad.NodeStatusReady,
		SchedulingEligibility: nomad.NodeEligible,
		NodeResources: &nomad.NodeResources{
			Cpu:    nomad.NodeCpuResources{CpuShares: cpuShares},
			Memory: nomad.NodeMemoryResources{MemoryMB: memMB},
			Disk:   nomad.NodeDiskResources{DiskMB: 100000},
		},
	}
	if voTag != "" {
		node.Meta = map[string]string{"vo": voTag}
	}
	if gpus > 0 {
		instances := []nomad.NodeDeviceInstance{}
		for i := int64(0); i < gpus; i++ {
			instances = append(instances, nomad.NodeDeviceInstance{ID: "g", Healthy: true})
		}
		node.NodeResources.Devices = []nomad.NodeDevice{{Type: "gpu", Name: "amd/gpu/MI300X", Instances: instances}}
	}
	return node
}

func testVOProfiles() map[string]config.VOProfile {
	return map[string]config.VOProfile{
		"vo.a": {Name: "vo.a", Namespace: "ns-a", Domain: "a.deploy.example"},
	}
}

func TestBuildSnapshot_CapacityCountsOnlyReadyEligible(t *testing.T) {
	down := readyNode("down", 64000, 256000, 8, "")
	down.Status = nomad.NodeStatusDown
	draining := readyNode("drain", 32000, 128000, 0, "")
	draining.Drain = true
	ineligible := readyNode("inel", 32000, 128000, 0, "")
	ineligible.SchedulingEligibility = nomad.NodeIneligible

	nodes := []nomad.NodeListStub{
		readyNode("n1", 64000, 256000, 8, ""),
		readyNode("n2", 32000, 128000, 0, "vo.a"),
		down, draining, ineligible,
	}
	snapshot := BuildSnapshot(nodes, nil, nil, testVOProfiles())

	voStats := snapshot.PerVO["vo.a"]
	assert.Equal(t, int64(2), voStats.NodeCount)
	assert.Equal(t, int64(96), voStats.CPUTotal)
	assert.Equal(t, int64(384000), voStats.MemoryTotalMB)
	assert.Equal(t, int64(8), voStats.GPUTotal)
	assert.Equal(t, int64(2), snapshot.IneligibleNodes)
	assert.Equal(t, int64(1), snapshot.FailingNodes)

	// property: per-VO capacity never exceeds the sum of all nodes
	var totalCPU int64
	for _, node := range nodes {
		totalCPU += node.NodeResources.Cpu.CpuShares / 1000
	}
	assert.LessOrEqual(t, voStats.CPUTotal, totalCPU)
}

func TestBuildSnapshot_NodeStates(t *testing.T) {
	down := readyNode("down", 1000, 1000, 0, "")
	down.Status = nomad.NodeStatusDown
	assert.Equal(t, model.NodeFailing, projectNode(down).State)

	initializing := readyNode("init", 1000, 1000, 0, "")
	initializing.Status = nomad.NodeStatusInit
	assert.Equal(t, model.NodeRescheduling, projectNode(initializing).State)

	draining := readyNode("drain", 1000, 1000, 0, "")
	draining.Drain = true
	assert.Equal(t, model.NodeRescheduling, projectNode(draining).State)

	assert.Equal(t, model.NodeReady, projectNode(readyNode("ok", 1000, 1000, 0, "")).State)
}

func TestBuildSnapshot_UsageAndReallocations(t *testing.T) {
	jobs := map[string][]nomad.JobListStub{
		"vo.a": {
			{ID: "j1", Status: nomad.JobStatusRunning, Meta: map[string]string{
				"owner": "alice@x", "cpu_num": "4", "gpu_num": "1", "ram": "8000", "disk": "10000",
			}},
			{ID: "dead", Status: nomad.JobStatusDead, Meta: map[string]string{
				"owner": "alice@x", "cpu_num": "16",
			}},
		},
	}
	allocs := map[string][]nomad.AllocationListStub{
		"vo.a": {
			{ID: "a1", TaskStates: map[string]nomad.TaskState{"main": {Restarts: 3}}},
			{ID: "a2", TaskStates: map[string]nomad.TaskState{"main": {Restarts: 0}}},
		},
	}
	snapshot := BuildSnapshot([]nomad.NodeListStub{readyNode("n1", 64000, 256000, 8, "")}, jobs, allocs, testVOProfiles())

	voStats := snapshot.PerVO["vo.a"]
	assert.Equal(t, int64(4), voStats.CPUUsed)
	assert.Equal(t, int64(1), voStats.GPUUsed)
	assert.Equal(t, map[string]int64{"a1": 3}, snapshot.Reallocations)
}

func TestAggregator_KeepsLastGoodSnapshot(t *testing.T) {
	healthy := true
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/nodes", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]nomad.NodeListStub{readyNode("n1", 64000, 256000, 0, "")})
	})
	mux.HandleFunc("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]nomad.JobListStub{})
	})
	mux.HandleFunc("/v1/allocations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]nomad.AllocationListStub{})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := nomad.NewClient(server.URL, nomad.TLSFiles{})
	require.NoError(t, err)
	aggregator := NewAggregator(client, testVOProfiles(), 0)

	aggregator.pollOnce(context.Background())
	first := aggregator.Latest()
	require.NotNil(t, first)

	healthy = false
	aggregator.pollOnce(context.Background())
	assert.Same(t, first, aggregator.Latest())
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	rows := []model.UsageDay{
		{Date: "2026-07-30", Owner: "alice@x", VO: "vo.a", CPUHours: 96, GPUHours: 24},
		{Date: "2026-07-30", VO: "vo.a", CPUHours: 480, GPUHours: 96},
	}
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-07-30.json"), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{"), 0o644))

	history := NewHistory(dir)

	user, err := history.PerUser("alice@x")
	require.NoError(t, err)
	require.Len(t, user, 1)
	assert.Equal(t, 96.0, user[0].CPUHours)

	vo, err := history.PerVO("vo.a")
	require.NoError(t, err)
	require.Len(t, vo, 1)
	assert.Equal(t, 480.0, vo[0].CPUHours)
}

func TestHistory_MissingArchive(t *testing.T) {
	history := NewHistory(filepath.Join(t.TempDir(), "nope"))
	days, err := history.PerUser("alice@x")
	require.NoError(t, err)
	assert.Empty(t, days)
}
