// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/clients/registry"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

const gibTest = int64(1) << 30

type harness struct {
	orchestrator *Orchestrator
	parsedHCL    *string
	registered   *bool
}

// newHarness scripts a running deployment owned by alice, with a given
// container disk usage and registry-stored bytes.
func newHarness(t *testing.T, diskUsed, storedBytes int64) *harness {
	t.Helper()
	var parsedHCL string
	var registered bool

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/job/target-job", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(nomad.Job{
			ID: "target-job", Status: nomad.JobStatusRunning, Type: "service",
			Meta: map[string]string{"owner": "alice@x", "workload": "demo-app"},
		})
	})
	mux.HandleFunc("/v1/job/target-job/allocations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]nomad.AllocationListStub{
			{ID: "alloc-1", NodeID: "node-9", ClientStatus: nomad.AllocClientStatusRunning, CreateTime: 2},
			{ID: "alloc-0", NodeID: "node-1", ClientStatus: nomad.AllocClientStatusFailed, CreateTime: 1},
		})
	})
	mux.HandleFunc("/v1/client/allocation/alloc-1/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"DiskStats": map[string]int64{"Used": diskUsed},
		})
	})
	mux.HandleFunc("/v1/jobs/parse", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		parsedHCL = body["JobHCL"].(string)
		_ = json.NewEncoder(w).Encode(nomad.Job{ID: "snap", Type: "batch"})
	})
	mux.HandleFunc("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		registered = true
		_ = json.NewEncoder(w).Encode(nomad.JobRegisterResponse{EvalID: "e"})
	})
	scheduler := httptest.NewServer(mux)
	t.Cleanup(scheduler.Close)

	registryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]registry.Artifact{
			{Size: storedBytes, Tags: []registry.Tag{{Name: "old_1"}}},
		})
	}))
	t.Cleanup(registryServer.Close)

	client, err := nomad.NewClient(scheduler.URL, nomad.TLSFiles{})
	require.NoError(t, err)

	orchestrator := NewOrchestrator(
		client,
		registry.NewClient(registryServer.URL, "papi-snapshots", "robot", "pw"),
		map[string]config.VOProfile{"vo.a": {Name: "vo.a", Namespace: "ns-a", Domain: "a.deploy.example"}},
		config.SnapshotConfig{Registry: "registry.example", Project: "papi-snapshots", RobotUser: "robot", UserQuotaGiB: 15, MaxContainerGiB: 10},
		&config.Env{HarborRobotPassword: "pw"},
		nil,
	)
	return &harness{orchestrator: orchestrator, parsedHCL: &parsedHCL, registered: &registered}
}

func aliceUser() *auth.UserInfo {
	return &auth.UserInfo{Subject: "alice@x", Name: "Alice", Email: "", VOs: []string{"vo.a"}}
}

func TestCreate_SubmitsNodePinnedBatchJob(t *testing.T) {
	h := newHarness(t, 2*gibTest, 1*gibTest)

	record, err := h.orchestrator.Create(context.Background(), aliceUser(), "vo.a", model.SnapshotRequest{
		UUID: "target-job", Title: "my snap",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(record.SnapshotID, "target-job_"))
	assert.Equal(t, "submitted", record.Status)
	assert.True(t, *h.registered)

	hcl := *h.parsedHCL
	// pinned to the node hosting the target allocation
	assert.Contains(t, hcl, `value     = "node-9"`)
	assert.Contains(t, hcl, "${node.unique.id}")
	assert.Contains(t, hcl, `TARGET_JOB_ID     = "target-job"`)
	assert.Contains(t, hcl, `type      = "batch"`)
}

func TestCreate_TooLarge(t *testing.T) {
	h := newHarness(t, 12*gibTest, 0)

	_, err := h.orchestrator.Create(context.Background(), aliceUser(), "vo.a", model.SnapshotRequest{UUID: "target-job"})
	require.Error(t, err)
	assert.Equal(t, errors.BadRequest, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "too-large")
	assert.False(t, *h.registered)
}

func TestCreate_StorageQuota(t *testing.T) {
	h := newHarness(t, 2*gibTest, 14*gibTest)

	_, err := h.orchestrator.Create(context.Background(), aliceUser(), "vo.a", model.SnapshotRequest{UUID: "target-job"})
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Equal(t, "snapshot-storage", err.(*errors.Error).Details["resource"])
}

func TestCreate_CrossUserForbidden(t *testing.T) {
	h := newHarness(t, 1*gibTest, 0)
	bob := &auth.UserInfo{Subject: "bob@x", VOs: []string{"vo.a"}}

	_, err := h.orchestrator.Create(context.Background(), bob, "vo.a", model.SnapshotRequest{UUID: "target-job"})
	require.Error(t, err)
	assert.True(t, errors.IsForbidden(err))
}

func TestList_ProjectsRegistryLabels(t *testing.T) {
	h := newHarness(t, 0, 3*gibTest)

	records, err := h.orchestrator.List(context.Background(), aliceUser())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "old_1", records[0].SnapshotID)
	assert.Equal(t, 3*gibTest, records[0].SizeBytes)
}
