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

func (s *Server) createSnapshot(c *gin.Context) {
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
	req := model.SnapshotRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || req.UUID == "" {
		_ = c.Error(errors.NewBadRequest("deployment uuid is required").WithDetail("field", "uuid"))
		return
	}
	record, err := s.snapshots.Create(c.Request.Context(), user, vo, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) listSnapshots(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	records, err := s.snapshots.List(c.Request.Context(), user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) deleteSnapshot(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.snapshots.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}
