// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// requestVO picks the VO a request operates in: the ?vo= parameter when
// given, otherwise the caller's first membership.
func requestVO(c *gin.Context, user *auth.UserInfo) (string, error) {
	vo := c.Query("vo")
	if vo == "" {
		if len(user.VOs) == 0 {
			return "", errors.NewForbidden("no virtual organization membership")
		}
		return user.VOs[0], nil
	}
	if !user.MemberOf(vo) {
		return "", errors.NewForbidden("no membership in " + vo)
	}
	return vo, nil
}

// pathKind validates the {kind} path segment.
func pathKind(c *gin.Context) (model.Kind, error) {
	kind := model.Kind(c.Param("kind"))
	if !kind.Valid() {
		return "", errors.NewBadRequestf("unknown workload kind %q", c.Param("kind"))
	}
	return kind, nil
}
