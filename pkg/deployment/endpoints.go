// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deployment

import (
	"fmt"

	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// kindRoles lists the exposed service roles per kind, matching the
// service tags in the job templates.
var kindRoles = map[model.Kind][]string{
	model.KindModule: {"api", "ide", "monitor"},
	model.KindTool:   {"api", "ide", "monitor"},
	model.KindTryMe:  {"ide"},
}

// PredictEndpoints computes the deployment URLs from the VO domain and
// hostname with the same formula the templates' service tags use. No
// scheduler round-trip: the URLs exist as soon as the ingress sees the
// service, whether or not the job runs yet.
func PredictEndpoints(kind model.Kind, hostname, domain string) map[string]string {
	endpoints := map[string]string{}
	for _, role := range kindRoles[kind] {
		endpoints[role] = fmt.Sprintf("https://%s-%s.%s", role, hostname, domain)
	}
	return endpoints
}
