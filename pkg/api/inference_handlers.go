// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/model"
)

func (s *Server) listServices(c *gin.Context) {
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
	services, err := s.inference.List(c.Request.Context(), user, vo)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (s *Server) bindServiceSpec(c *gin.Context, user *auth.UserInfo) (*model.ServiceSpec, error) {
	spec := model.ServiceSpec{}
	if err := c.ShouldBindJSON(&spec); err != nil {
		return nil, errors.NewBadRequest("malformed service spec").WithError(err)
	}
	if spec.VO == "" {
		vo, err := requestVO(c, user)
		if err != nil {
			return nil, err
		}
		spec.VO = vo
	}
	return &spec, nil
}

func (s *Server) createService(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	spec, err := s.bindServiceSpec(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.inference.Create(c.Request.Context(), user, *spec); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": spec.Name})
}

func (s *Server) updateService(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	spec, err := s.bindServiceSpec(c, user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.inference.Update(c.Request.Context(), user, *spec); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": spec.Name})
}

func (s *Server) deleteService(c *gin.Context) {
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
	if err := s.inference.Delete(c.Request.Context(), user, vo, c.Param("name")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

func (s *Server) serviceLogs(c *gin.Context) {
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
	logs, err := s.inference.Logs(c.Request.Context(), user, vo, c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.String(http.StatusOK, logs)
}
