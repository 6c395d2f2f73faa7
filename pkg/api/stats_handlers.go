// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

// clusterStats serves the latest poller snapshot. Public: it carries no
// per-user data.
func (s *Server) clusterStats(c *gin.Context) {
	snapshot := s.aggregator.Latest()
	if snapshot == nil {
		_ = c.Error(errors.NewBackendError("cluster stats not yet available"))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// deploymentStats serves the caller's live usage plus the historical
// daily summaries from the accounting archive.
func (s *Server) deploymentStats(c *gin.Context) {
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

	usage, err := s.ledger.Usage(c.Request.Context(), user.Subject, vo)
	if err != nil {
		_ = c.Error(err)
		return
	}
	userHistory, err := s.history.PerUser(user.Subject)
	if err != nil {
		_ = c.Error(err)
		return
	}
	voHistory, err := s.history.PerVO(vo)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"live":       usage,
		"history":    userHistory,
		"vo_history": voHistory,
	})
}
