// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package config

import (
	"fmt"
	"os"
	"strings"
)

// Env holds the values PAPI reads from the process environment. Secrets
// stay here, never in the YAML config.
type Env struct {
	NomadAddr       string
	NomadCACert     string
	NomadClientCert string
	NomadClientKey  string
	AccountingPath  string
	ZenodoToken     string
	SecretsToken    string
	GithubToken     string
	MailingToken    string
	HarborRobotPassword string
	LLMAPIKey       string
	DashboardURL    string
	ForwardedAllowIPs string
	IsProd          bool
}

// LoadEnv reads and checks the environment. Errors here map to exit code 2.
// In dev mode (IS_PROD=False) missing secrets are tolerated; the subsystems
// that need them degrade per their own rules.
func LoadEnv() (*Env, error) {
	env := &Env{
		NomadAddr:       os.Getenv("NOMAD_ADDR"),
		NomadCACert:     os.Getenv("NOMAD_CACERT"),
		NomadClientCert: os.Getenv("NOMAD_CLIENT_CERT"),
		NomadClientKey:  os.Getenv("NOMAD_CLIENT_KEY"),
		AccountingPath:  os.Getenv("ACCOUNTING_PTH"),
		ZenodoToken:     os.Getenv("ZENODO_TOKEN"),
		SecretsToken:    os.Getenv("PAPI_SECRETS_TOKEN"),
		GithubToken:     os.Getenv("PAPI_GITHUB_TOKEN"),
		MailingToken:    os.Getenv("MAILING_TOKEN"),
		HarborRobotPassword: os.Getenv("HARBOR_ROBOT_PASSWORD"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		DashboardURL:    os.Getenv("DASHBOARD_URL"),
		ForwardedAllowIPs: os.Getenv("FORWARDED_ALLOW_IPS"),
		IsProd:          !strings.EqualFold(os.Getenv("IS_PROD"), "false"),
	}
	if os.Getenv("IS_PROD") == "" {
		env.IsProd = false
	}

	if env.NomadAddr == "" {
		return nil, fmt.Errorf("environment: NOMAD_ADDR is required")
	}
	if env.IsProd {
		var missing []string
		for name, value := range map[string]string{
			"PAPI_SECRETS_TOKEN":    env.SecretsToken,
			"MAILING_TOKEN":         env.MailingToken,
			"HARBOR_ROBOT_PASSWORD": env.HarborRobotPassword,
			"LLM_API_KEY":           env.LLMAPIKey,
		} {
			if value == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("environment: missing %s", strings.Join(missing, ", "))
		}
	}
	return env, nil
}
