// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

// Secrets are addressed by the ?path= query parameter, always relative to
// the caller's own subtree.
func (s *Server) listSecrets(c *gin.Context) {
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
	keys, err := s.secrets.List(c.Request.Context(), user.Subject, vo, c.Query("path"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

type putSecretRequest struct {
	Path  string                 `json:"path"`
	Value map[string]interface{} `json:"value"`
}

func (s *Server) putSecret(c *gin.Context) {
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
	req := putSecretRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" || len(req.Value) == 0 {
		_ = c.Error(errors.NewBadRequest("path and value are required"))
		return
	}
	if err := s.secrets.Put(c.Request.Context(), user.Subject, vo, req.Path, req.Value); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": req.Path})
}

func (s *Server) deleteSecret(c *gin.Context) {
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
	path := c.Query("path")
	if path == "" {
		_ = c.Error(errors.NewBadRequest("path is required"))
		return
	}
	if err := s.secrets.Delete(c.Request.Context(), user.Subject, vo, path); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": path})
}
