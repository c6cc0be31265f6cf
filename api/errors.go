// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitmark-inc/bulletind/fault"
)

// map an error class to a status and abort the request
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"message": err.Error()}

	var validation *fault.ValidationError
	if errors.As(err, &validation) {
		status = http.StatusBadRequest
		body = gin.H{
			"field":   validation.Field,
			"code":    validation.Code,
			"message": validation.Message,
		}
	} else if n, ok := fault.AsNotYet(err); ok {
		status = http.StatusConflict
		body = gin.H{
			"code":        "not_yet",
			"message":     err.Error(),
			"bulletin_id": n.BulletinID,
			"state":       n.State,
		}
	} else if errors.Is(err, fault.ErrRateLimiting) {
		status = http.StatusTooManyRequests
	} else if fault.IsErrNotFound(err) {
		status = http.StatusNotFound
	} else if fault.IsErrExists(err) {
		status = http.StatusConflict
	} else if fault.IsErrInvalid(err) {
		status = http.StatusBadRequest
	}

	if http.StatusInternalServerError == status {
		s.log.Errorf("%s %s  error: %s", c.Request.Method, c.Request.URL.Path, err)
		body = gin.H{"message": "internal error"}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
