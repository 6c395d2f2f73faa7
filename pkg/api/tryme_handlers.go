// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

type tryMeRequest struct {
	Name string `json:"name"`
}

func (s *Server) createTryMe(c *gin.Context) {
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
	req := tryMeRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		_ = c.Error(errors.NewBadRequest("workload name is required").WithDetail("field", "name"))
		return
	}
	resp, err := s.tryMe.Create(c.Request.Context(), user, vo, req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listTryMe(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	deployments, err := s.tryMe.List(c.Request.Context(), user, c.Query("vo"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, deployments)
}

func (s *Server) deleteTryMe(c *gin.Context) {
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
	if err := s.tryMe.Delete(c.Request.Context(), user, vo, c.Param("uuid")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("uuid")})
}
