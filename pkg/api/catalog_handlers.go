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

func (s *Server) listCatalog(c *gin.Context) {
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	names, err := s.catalog.List(c.Request.Context(), kind)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, names)
}

// detailCatalog serves GET /catalog/{kind}/detail. The :name slot carries
// the literal "detail"; anything else is a path the API does not serve.
func (s *Server) detailCatalog(c *gin.Context) {
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if c.Param("name") != "detail" {
		_ = c.Error(errors.NewNotFound("no such catalog operation"))
		return
	}
	summaries, err := s.catalog.Detail(c.Request.Context(), kind)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) catalogMetadata(c *gin.Context) {
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	item, err := s.catalog.Metadata(c.Request.Context(), kind, c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) catalogConfig(c *gin.Context) {
	kind, err := pathKind(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	schema, err := s.catalog.ConfigTemplate(c.Request.Context(), kind, c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

type refreshRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (s *Server) refreshCatalog(c *gin.Context) {
	user, err := auth.UserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !s.cfg.Auth.IsAdmin(user.Subject) {
		_ = c.Error(errors.NewForbidden("catalog refresh is operator-only"))
		return
	}
	req := refreshRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errors.NewBadRequest("malformed refresh request").WithError(err))
			return
		}
	}
	if err := s.catalog.Refresh(c.Request.Context(), model.Kind(req.Kind), req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}
