// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/catalog"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

// createDeploymentRequest is the submit body: the workload name plus its
// sectioned parameter map, which is passed to schema validation as-is.
type createDeploymentRequest struct {
	Name string `json:"name"`
}

func (s *Server) createDeployment(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	vo, err := requestVO(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	raw := map[string]json.RawMessage{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		_ = c.Error(errors.NewBadRequest("malformed deployment request").WithError(err))
		return
	}
	req := createDeploymentRequest{}
	if nameRaw, ok := raw["name"]; ok {
		if err := json.Unmarshal(nameRaw, &req.Name); err != nil {
			_ = c.Error(errors.NewBadRequest("malformed workload name").WithError(err))
			return
		}
	}
	if req.Name == "" {
		_ = c.Error(errors.NewBadRequest("workload name is required").WithDetail("field", "name"))
		return
	}
	params := catalog.Params{}
	for section, body := range raw {
		if section == "name" {
			continue
		}
		fields := map[string]interface{}{}
		if err := json.Unmarshal(body, &fields); err != nil {
			_ = c.Error(errors.NewBadRequestf("section %q is not an object", section).WithError(err))
			return
		}
		params[section] = fields
	}

	resp, err := s.deployments.Create(c.Request.Context(), user, vo, kind, req.Name, params)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listDeployments(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	deployments, err := s.deployments.List(c.Request.Context(), user, c.Query("vo"), []model.Kind{kind})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, deployments)
}

func (s *Server) getDeployment(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	vo, err := requestVO(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	deployment, err := s.deployments.Get(c.Request.Context(), user, vo, c.Param("uuid"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, deployment)
}

func (s *Server) deleteDeployment(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	vo, err := requestVO(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.deployments.Delete(c.Request.Context(), user, vo, c.Param("uuid")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("uuid")})
}
