/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"gotest.tools/assert"

	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/clients/llmgw"
	"github.com/AMD-AGI/primus-papi/pkg/clients/nomad"
	"github.com/AMD-AGI/primus-papi/pkg/clients/oscar"
	"github.com/AMD-AGI/primus-papi/pkg/clients/registry"
	"github.com/AMD-AGI/primus-papi/pkg/clients/secretstore"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/deployment"
	"github.com/AMD-AGI/primus-papi/pkg/inference"
	"github.com/AMD-AGI/primus-papi/pkg/model"
	"github.com/AMD-AGI/primus-papi/pkg/quota"
	"github.com/AMD-AGI/primus-papi/pkg/router"
	"github.com/AMD-AGI/primus-papi/pkg/secrets"
	"github.com/AMD-AGI/primus-papi/pkg/snapshot"
	"github.com/AMD-AGI/primus-papi/pkg/stats"
	"github.com/AMD-AGI/primus-papi/pkg/tryme"
)

const testIssuer = "https://iam.test/realms/main"

type apiHarness struct {
	engine    *gin.Engine
	scheduler *schedulerFake
}

// schedulerFake scripts the scheduler surface the API touches.
type schedulerFake struct {
	jobs     []nomad.JobListStub
	jobsByID map[string]*nomad.Job
	purged   []string
}

func (f *schedulerFake) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/jobs/parse", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(nomad.Job{ID: "parsed", Type: "service", TaskGroups: []nomad.TaskGroup{
			{Name: "usergroup", Tasks: []nomad.Task{{Name: "main", Resources: &nomad.Resources{Cores: 4}}}},
		}})
	})
	mux.HandleFunc("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(nomad.JobRegisterResponse{EvalID: "e"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.jobs)
	})
	mux.HandleFunc("/v1/job/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/v1/job/")
		if strings.HasSuffix(rest, "/allocations") {
			_ = json.NewEncoder(w).Encode([]nomad.AllocationListStub{})
			return
		}
		if r.Method == http.MethodDelete {
			f.purged = append(f.purged, rest)
			_ = json.NewEncoder(w).Encode(map[string]string{"EvalID": "e"})
			return
		}
		job, ok := f.jobsByID[rest]
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	return mux
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := &schedulerFake{jobsByID: map[string]*nomad.Job{}}
	schedulerServer := httptest.NewServer(fake.handler())
	t.Cleanup(schedulerServer.Close)
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(vault.Close)

	scheduler, err := nomad.NewClient(schedulerServer.URL, nomad.TLSFiles{})
	assert.NilError(t, err)

	cfg := &config.Config{
		HttpPort: 8080,
		Self:     config.SelfConfig{Domain: "papi.test"},
		Auth: config.AuthConfig{
			CORSOrigins: []string{"https://dashboard.test"},
			OP:          []string{testIssuer},
			VO:          []string{"vo.a"},
			Admins:      []string{"ops@papi"},
		},
		Nomad: config.NomadConfig{Namespaces: map[string]string{"vo.a": "ns-a"}},
		LB:    config.LBConfig{Domain: map[string]string{"vo.a": "a.deploy.test"}},
		Quotas: config.QuotaConfig{
			GPUPerUser: 1,
			PerUser: map[string]config.ResourceCaps{
				"vo.a": {CPUs: 16, GPUs: 2, MemoryMB: 64000, DiskMB: 100000, Deployments: 4},
			},
		},
		Secrets: config.SecretsConfig{Root: "/papi"},
	}
	profiles, err := config.BuildVOProfiles(cfg, "")
	assert.NilError(t, err)

	items := []model.CatalogItem{{
		Kind: model.KindModule, Name: "demo-app", Title: "Demo App",
		DockerImage: "allowed/demo-app", DockerTags: []string{"latest"},
	}}
	cat := catalog.NewStatic(items, nil)
	allowlist := catalog.NewImageAllowlist([]string{"allowed/"})
	broker := secrets.NewBroker(secretstore.NewClient(vault.URL, "token"), profiles)
	ledger := quota.NewLedger(scheduler, cfg.Quotas, profiles)
	env := &config.Env{}
	deployments := deployment.NewController(scheduler, cat, ledger, broker, allowlist, profiles, env, config.TryMeConfig{})
	tryMeController := tryme.NewController(deployments, cat, ledger, config.TryMeConfig{PerUser: 1})
	registryClient := registry.NewClient("https://registry.test", "papi-snapshots", "robot", "pw")
	snapshots := snapshot.NewOrchestrator(scheduler, registryClient, profiles, config.SnapshotConfig{}, env, nil)
	inferenceController := inference.NewController(map[string]*oscar.Client{}, allowlist)
	aggregator := stats.NewAggregator(scheduler, profiles, 0)
	history := stats.NewHistory("")
	llm := llmgw.NewClient("https://llm.test", "key")

	apiServer := NewServer(cfg, cat, deployments, tryMeController, snapshots,
		inferenceController, broker, ledger, aggregator, history, llm)

	engine := gin.New()
	router.RegisterGroup(apiServer.RegisterRoutes)
	t.Cleanup(router.ResetGroups)
	assert.NilError(t, router.InitRouter(engine, cfg))

	return &apiHarness{engine: engine, scheduler: fake}
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   subject,
		"name":  "Test User",
		"email": subject,
		"eduperson_entitlement": []string{
			"urn:mace:egi.eu:group:vo.a:role=member#aai.egi.eu",
		},
	})
	signed, err := token.SignedString([]byte("k"))
	assert.NilError(t, err)
	return "Bearer " + signed
}

func doJSON(h *apiHarness, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rsp := httptest.NewRecorder()
	h.engine.ServeHTTP(rsp, req)
	return rsp
}

func TestCatalogList_Public(t *testing.T) {
	h := newAPIHarness(t)
	rsp := doJSON(h, http.MethodGet, "/v1/catalog/module", "", nil)
	assert.Equal(t, rsp.Code, http.StatusOK)

	names := []string{}
	assert.NilError(t, json.Unmarshal(rsp.Body.Bytes(), &names))
	assert.DeepEqual(t, names, []string{"demo-app"})
}

func TestDeployments_RequireAuth(t *testing.T) {
	h := newAPIHarness(t)
	rsp := doJSON(h, http.MethodGet, "/v1/deployments/module", "", nil)
	assert.Equal(t, rsp.Code, http.StatusUnauthorized)
}

func TestCreateDeployment_Success(t *testing.T) {
	h := newAPIHarness(t)
	body := map[string]interface{}{
		"name": "demo-app",
		"general": map[string]interface{}{
			"title": "t1", "docker_image": "allowed/demo-app", "docker_tag": "latest",
			"service": "jupyter", "jupyter_password": "password1",
		},
		"hardware": map[string]interface{}{
			"cpu_num": 4, "gpu_num": 0, "ram": 8000, "disk": 10000,
		},
	}
	rsp := doJSON(h, http.MethodPost, "/v1/deployments/module", bearer(t, "alice@x"), body)
	assert.Equal(t, rsp.Code, http.StatusCreated)

	created := model.CreateResponse{}
	assert.NilError(t, json.Unmarshal(rsp.Body.Bytes(), &created))
	assert.Assert(t, created.UUID != "")
	assert.Equal(t, created.Endpoints["api"], "https://api-"+created.UUID+".a.deploy.test")
	assert.Equal(t, created.Endpoints["ide"], "https://ide-"+created.UUID+".a.deploy.test")
}

func TestCreateDeployment_QuotaBody(t *testing.T) {
	h := newAPIHarness(t)
	h.scheduler.jobs = []nomad.JobListStub{{
		ID: "existing", Status: nomad.JobStatusRunning,
		Meta: map[string]string{"owner": "alice@x", "kind": "module", "gpu_num": "1"},
	}}
	body := map[string]interface{}{
		"name": "demo-app",
		"general": map[string]interface{}{
			"title": "t1", "docker_image": "allowed/demo-app", "docker_tag": "latest",
			"service": "jupyter", "jupyter_password": "password1",
		},
		"hardware": map[string]interface{}{"cpu_num": 4, "gpu_num": 1, "ram": 8000, "disk": 10000},
	}
	rsp := doJSON(h, http.MethodPost, "/v1/deployments/module", bearer(t, "alice@x"), body)
	assert.Equal(t, rsp.Code, http.StatusTooManyRequests)

	errorBody := struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	}{}
	assert.NilError(t, json.Unmarshal(rsp.Body.Bytes(), &errorBody))
	assert.Equal(t, errorBody.Code, "QuotaExceeded")
	assert.Equal(t, errorBody.Details["resource"], "GPU")
	assert.Equal(t, errorBody.Details["limit"], float64(1))
	assert.Equal(t, errorBody.Details["current"], float64(1))
}

func TestDeleteDeployment_CrossUser(t *testing.T) {
	h := newAPIHarness(t)
	h.scheduler.jobsByID["alice-job"] = &nomad.Job{
		ID: "alice-job", Status: nomad.JobStatusRunning, Type: "service",
		Meta: map[string]string{"owner": "alice@x", "kind": "module"},
	}
	rsp := doJSON(h, http.MethodDelete, "/v1/deployments/module/alice-job", bearer(t, "bob@x"), nil)
	assert.Equal(t, rsp.Code, http.StatusForbidden)
	assert.Equal(t, len(h.scheduler.purged), 0)
}

func TestUnknownWorkload_404(t *testing.T) {
	h := newAPIHarness(t)
	rsp := doJSON(h, http.MethodGet, "/v1/catalog/module/nope/metadata", "", nil)
	assert.Equal(t, rsp.Code, http.StatusNotFound)
}

func TestCatalogRefresh_AdminOnly(t *testing.T) {
	h := newAPIHarness(t)

	rsp := doJSON(h, http.MethodPost, "/v1/catalog/refresh", bearer(t, "alice@x"), nil)
	assert.Equal(t, rsp.Code, http.StatusForbidden)

	rsp = doJSON(h, http.MethodPost, "/v1/catalog/refresh", bearer(t, "ops@papi"), nil)
	assert.Equal(t, rsp.Code, http.StatusOK)
}

func TestClusterStats_PublicButEmptyBeforeFirstPoll(t *testing.T) {
	h := newAPIHarness(t)
	rsp := doJSON(h, http.MethodGet, "/v1/stats/cluster", "", nil)
	assert.Equal(t, rsp.Code, http.StatusBadGateway)
}

func TestLLMCatalog_Public(t *testing.T) {
	h := newAPIHarness(t)
	rsp := doJSON(h, http.MethodGet, "/v1/llm/models", "", nil)
	assert.Equal(t, rsp.Code, http.StatusOK)

	models := []model.LLMModel{}
	assert.NilError(t, json.Unmarshal(rsp.Body.Bytes(), &models))
	assert.Assert(t, len(models) > 0)
}

func TestCORS_AllowlistedOriginOnly(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/catalog/module", nil)
	req.Header.Set("Origin", "https://dashboard.test")
	rsp := httptest.NewRecorder()
	h.engine.ServeHTTP(rsp, req)
	assert.Equal(t, rsp.Header().Get("Access-Control-Allow-Origin"), "https://dashboard.test")

	req = httptest.NewRequest(http.MethodGet, "/v1/catalog/module", nil)
	req.Header.Set("Origin", "https://evil.example")
	rsp = httptest.NewRecorder()
	h.engine.ServeHTTP(rsp, req)
	assert.Equal(t, rsp.Header().Get("Access-Control-Allow-Origin"), "")
}
