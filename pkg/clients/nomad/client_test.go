// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package nomad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, TLSFiles{})
	require.NoError(t, err)
	return client
}

func TestListJobsByOwner(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/jobs", r.URL.Path)
		assert.Equal(t, "ns-a", r.URL.Query().Get("namespace"))
		assert.Equal(t, "true", r.URL.Query().Get("meta"))
		_ = json.NewEncoder(w).Encode([]JobListStub{
			{ID: "job-1", Meta: map[string]string{"owner": "alice@x"}},
			{ID: "job-2", Meta: map[string]string{"owner": "bob@x"}},
			{ID: "job-3", Meta: map[string]string{"owner": "alice@x"}},
		})
	}))

	jobs, err := client.ListJobsByOwner(context.Background(), "ns-a", "alice@x")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "job-3", jobs[1].ID)
}

func TestGetJob_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "job not found", http.StatusNotFound)
	}))

	_, err := client.GetJob(context.Background(), "ns-a", "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegisterJob_UpstreamErrorPassesThrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "1 error occurred: missing datacenter", http.StatusInternalServerError)
	}))

	_, err := client.RegisterJob(context.Background(), "ns-a", &Job{ID: "j"})
	require.Error(t, err)
	assert.Equal(t, errors.BackendError, errors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "missing datacenter")
}

func TestRegisterJob_NoRetryOnWrite(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.RegisterJob(context.Background(), "ns-a", &Job{ID: "j"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestListNodes_RetriesReads(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]NodeListStub{{ID: "node-1", Status: NodeStatusReady}})
	}))

	nodes, err := client.ListNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, nodes, 1)
	assert.Equal(t, "node-1", nodes[0].ID)
}

func TestParseJob(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/jobs/parse", r.URL.Path)
		body := map[string]interface{}{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["Canonicalize"])
		assert.Contains(t, body["JobHCL"], "job \"demo\"")
		_ = json.NewEncoder(w).Encode(Job{ID: "demo", Type: "service"})
	}))

	job, err := client.ParseJob(context.Background(), `job "demo" {}`)
	require.NoError(t, err)
	assert.Equal(t, "demo", job.ID)
}

func TestPurgeJob(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/job/job-1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("purge"))
		_ = json.NewEncoder(w).Encode(map[string]string{"EvalID": "eval-1"})
	}))

	require.NoError(t, client.PurgeJob(context.Background(), "ns-a", "job-1"))
}
