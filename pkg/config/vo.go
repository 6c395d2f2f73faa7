// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"fmt"
	"strings"
)

// VOProfile is the resolved per-tenant view of the config: everything that
// is partitioned by virtual organization, in one value. Profiles are built
// once at startup and never mutated.
type VOProfile struct {
	Name              string
	Namespace         string
	Domain            string
	InferenceEndpoint string
	InferenceCluster  string
	MLflowURI         string
	SecretRoot        string
	DashboardURL      string
}

// BuildVOProfiles materializes the VO map from the loaded config. Every
// allow-listed VO gets a profile; lookups for anything else fail.
func BuildVOProfiles(cfg *Config, dashboardURL string) (map[string]VOProfile, error) {
	profiles := make(map[string]VOProfile, len(cfg.Auth.VO))
	for _, vo := range cfg.Auth.VO {
		profile := VOProfile{
			Name:       vo,
			Namespace:  cfg.Nomad.Namespaces[vo],
			Domain:     cfg.LB.Domain[vo],
			MLflowURI:  cfg.MLflow[vo],
			SecretRoot: strings.TrimSuffix(cfg.Secrets.Root, "/") + "/" + vo,
		}
		if cluster, ok := cfg.Oscar.Clusters[vo]; ok {
			profile.InferenceEndpoint = cluster.Endpoint
			profile.InferenceCluster = cluster.ClusterID
		}
		if dashboardURL != "" {
			profile.DashboardURL = strings.TrimSuffix(dashboardURL, "/") + "/" + vo
		}
		if profile.Namespace == "" || profile.Domain == "" {
			return nil, fmt.Errorf("config: VO %q lacks a namespace or domain mapping", vo)
		}
		profiles[vo] = profile
	}
	return profiles, nil
}
