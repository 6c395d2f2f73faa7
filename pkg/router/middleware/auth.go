// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/auth"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const bearerPrefix = "Bearer "

// HandleAuth extracts the caller identity from the Authorization header.
// Routes that take this middleware require a token naming a trusted issuer
// and at least one allow-listed VO.
func HandleAuth(issuers, allowedVOs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Request.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			_ = c.Error(errors.NewAuthFailed("missing bearer token"))
			c.Abort()
			return
		}

		user, err := auth.ParseToken(strings.TrimPrefix(header, bearerPrefix), issuers, allowedVOs)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(auth.ContextKeyUser, user)
		c.Next()
	}
}
