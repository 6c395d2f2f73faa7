// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/inference"
)

func (s *Server) listLLMModels(c *gin.Context) {
	c.JSON(http.StatusOK, inference.LLMModels())
}

// proxyLLM streams one chat request through to the hosted gateway. The
// caller is already authenticated; the gateway sees only the server-side
// key.
func (s *Server) proxyLLM(c *gin.Context) {
	if err := s.llm.Forward(c.Writer, c.Request, "/v1/chat/completions"); err != nil {
		_ = c.Error(err)
		return
	}
}
