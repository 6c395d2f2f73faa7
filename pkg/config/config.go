// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/AMD-AGI/primus-papi/pkg/logger/conf"
)

// Config is the whole service configuration, loaded exactly once at startup
// and shared read-only by every subsystem. The file is env-expanded before
// parsing, so a template form with ${VAR} references works unchanged.
type Config struct {
	HttpPort int             `yaml:"httpPort"`
	Self     SelfConfig      `yaml:"self"`
	Auth     AuthConfig      `yaml:"auth"`
	Nomad    NomadConfig     `yaml:"nomad"`
	LB       LBConfig        `yaml:"lb"`
	Oscar    OscarConfig     `yaml:"oscar"`
	MLflow   map[string]string `yaml:"mlflow"`
	Secrets  SecretsConfig   `yaml:"secrets"`
	Catalog  CatalogConfig   `yaml:"catalog"`
	Quotas   QuotaConfig     `yaml:"quotas"`
	TryMe    TryMeConfig     `yaml:"try_me"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	LLM      LLMConfig       `yaml:"llm"`
	Mail     MailConfig      `yaml:"mail"`
	Stats    StatsConfig     `yaml:"stats"`
	Log      *conf.LogConfig `yaml:"log"`
}

type SelfConfig struct {
	Domain string `yaml:"domain"`
}

type AuthConfig struct {
	CORSOrigins []string `yaml:"CORS_origins"`
	// OP lists the trusted OIDC issuers; a bearer token must name one.
	OP []string `yaml:"OP"`
	// VO is the allow-list of virtual organizations; a token must carry at
	// least one to pass the edge at all.
	VO []string `yaml:"VO"`
	// Admins are the subjects allowed to hit operator endpoints such as
	// the catalog refresh.
	Admins []string `yaml:"admins"`
}

func (a AuthConfig) IsAdmin(subject string) bool {
	for _, admin := range a.Admins {
		if admin == subject {
			return true
		}
	}
	return false
}

type NomadConfig struct {
	// Namespaces maps VO -> Nomad namespace.
	Namespaces map[string]string `yaml:"namespaces"`
}

type LBConfig struct {
	// Domain maps VO -> base domain deployments are exposed under.
	Domain map[string]string `yaml:"domain"`
}

type OscarConfig struct {
	// Clusters maps VO -> function-platform endpoint.
	Clusters map[string]OscarCluster `yaml:"clusters"`
}

type OscarCluster struct {
	Endpoint  string `yaml:"endpoint"`
	ClusterID string `yaml:"cluster_id"`
	// Token is the service credential for the cluster; the template form
	// of the config injects it from the environment.
	Token string `yaml:"token"`
}

type SecretsConfig struct {
	// Address of the key/value secret store.
	Address string `yaml:"address"`
	// Root is the store-side path prefix all VO subtrees hang from.
	Root string `yaml:"root"`
}

type CatalogConfig struct {
	// Repos maps workload kind -> upstream index repository.
	Repos map[string]CatalogRepo `yaml:"repos"`
	// AllowedImagePrefixes is the docker-image allow-list; catalog items
	// and user overrides outside it are rejected.
	AllowedImagePrefixes []string `yaml:"allowed_image_prefixes"`
	// GPUModels are the models users may pin a deployment to.
	GPUModels   []string `yaml:"gpu_models"`
	RefreshCron string   `yaml:"refresh_cron"`
}

type CatalogRepo struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// QuotaConfig carries the per-user cap table, keyed by VO, plus the global
// per-user GPU cap applied regardless of workload kind.
type QuotaConfig struct {
	PerUser map[string]ResourceCaps `yaml:"per_user"`
	PerVO   map[string]ResourceCaps `yaml:"per_vo"`
	GPUPerUser int64 `yaml:"gpu_per_user"`
	// CountDead controls whether dead jobs awaiting purge are charged
	// against the caps. Default false: a dead allocation holds nothing.
	CountDead bool `yaml:"count_dead"`
}

type ResourceCaps struct {
	CPUs        int64 `yaml:"cpus"`
	GPUs        int64 `yaml:"gpus"`
	MemoryMB    int64 `yaml:"memory_mb"`
	DiskMB      int64 `yaml:"disk_mb"`
	Deployments int64 `yaml:"deployments"`
}

type TryMeConfig struct {
	PerUser  int64 `yaml:"per_user"`
	PerVO    int64 `yaml:"per_vo"`
	CPUs     int64 `yaml:"cpus"`
	MemoryMB int64 `yaml:"memory_mb"`
	DiskMB   int64 `yaml:"disk_mb"`
	WallMinutes int `yaml:"wall_minutes"`
}

type SnapshotConfig struct {
	// Registry is the image registry base URL snapshots are pushed to.
	Registry string `yaml:"registry"`
	Project  string `yaml:"project"`
	RobotUser string `yaml:"robot_user"`
	// UserQuotaGiB caps the sum of a user's stored snapshot sizes.
	UserQuotaGiB int64 `yaml:"user_quota_gib"`
	// MaxContainerGiB caps the size of a container eligible for commit.
	MaxContainerGiB int64 `yaml:"max_container_gib"`
}

type LLMConfig struct {
	GatewayURL string `yaml:"gateway_url"`
}

type MailConfig struct {
	BridgeURL string `yaml:"bridge_url"`
	From      string `yaml:"from"`
}

type StatsConfig struct {
	PollSeconds int `yaml:"poll_seconds"`
}

func (s StatsConfig) PollInterval() time.Duration {
	if s.PollSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.PollSeconds) * time.Second
}

func (t TryMeConfig) WallClock() time.Duration {
	if t.WallMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(t.WallMinutes) * time.Minute
}

func (c CatalogConfig) GetRefreshCron() string {
	if c.RefreshCron == "" {
		return "@hourly"
	}
	return c.RefreshCron
}

func (q QuotaConfig) UserCaps(vo string) ResourceCaps {
	if caps, ok := q.PerUser[vo]; ok {
		return caps
	}
	return ResourceCaps{}
}

func (q QuotaConfig) VOCaps(vo string) ResourceCaps {
	if caps, ok := q.PerVO[vo]; ok {
		return caps
	}
	return ResourceCaps{}
}

// LoadConfig reads CONFIG_PATH (default config.yaml), expands ${VAR}
// references from the environment, and parses the result. Errors here are
// fatal startup errors (exit code 1).
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return ParseConfig([]byte(os.ExpandEnv(string(raw))))
}

func ParseConfig(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = conf.DefaultConfig()
	}
	if cfg.HttpPort == 0 {
		cfg.HttpPort = 8080
	}
	return cfg, nil
}

// Validate checks the parts of the config nothing can run without.
func (c *Config) Validate() error {
	if c.Self.Domain == "" {
		return fmt.Errorf("config: self.domain is required")
	}
	if len(c.Auth.VO) == 0 {
		return fmt.Errorf("config: auth.VO must list at least one virtual organization")
	}
	if len(c.Auth.OP) == 0 {
		return fmt.Errorf("config: auth.OP must list at least one OIDC issuer")
	}
	for _, vo := range c.Auth.VO {
		if _, ok := c.Nomad.Namespaces[vo]; !ok {
			return fmt.Errorf("config: nomad.namespaces missing entry for VO %q", vo)
		}
		if _, ok := c.LB.Domain[vo]; !ok {
			return fmt.Errorf("config: lb.domain missing entry for VO %q", vo)
		}
	}
	return nil
}

// IsVOAllowed reports membership of vo in the configured allow-list.
func (c *Config) IsVOAllowed(vo string) bool {
	for _, allowed := range c.Auth.VO {
		if allowed == vo {
			return true
		}
	}
	return false
}
