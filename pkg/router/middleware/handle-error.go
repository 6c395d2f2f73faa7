// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
	"github.com/AMD-AGI/primus-papi/pkg/logger/log"
	"github.com/AMD-AGI/primus-papi/pkg/model/rest"
)

// HandleErrors is the single place typed errors become HTTP responses.
// Handlers record failures with c.Error and return; nothing below the edge
// writes a status code or leaks a stack trace.
func HandleErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		for i := range c.Errors {
			if i > 0 {
				log.GlobalLogger().WithContext(c).Errorf("subsequent error %v in request %s: %+v", i, c.Request.URL.Path, c.Errors[i].Err)
			}
		}

		err := c.Errors[0].Err
		if pErr, ok := err.(*errors.Error); ok {
			status := errors.HTTPStatus(pErr.Code)
			if status >= 500 {
				log.GlobalLogger().WithContext(c).Errorf("request %s failed: code %s message %q inner %+v stack %s",
					c.Request.URL.Path, pErr.Code, pErr.Message, pErr.InnerError, pErr.GetTopStackString())
			} else {
				log.GlobalLogger().WithContext(c).Warningf("request %s rejected: code %s message %q",
					c.Request.URL.Path, pErr.Code, pErr.Message)
			}
			c.AbortWithStatusJSON(status, rest.ErrorBody{
				Code:    pErr.Code,
				Message: pErr.Message,
				Details: pErr.Details,
			})
			return
		}

		log.GlobalLogger().WithContext(c).Errorf("request %s failed with unwrapped error: %+v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(errors.HTTPStatus(errors.InternalError), rest.ErrorBody{
			Code:    errors.InternalError,
			Message: "internal error",
		})
	}
}
