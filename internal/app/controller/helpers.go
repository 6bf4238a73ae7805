package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

// IdempotencyKeyHeader carries the client's retry key on order placement.
const IdempotencyKeyHeader = "Idempotency-Key"

// requireUserID aborts with 401 when the auth middleware did not run.
func requireUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.GetLoggerFromContext(c).Warn("Unauthenticated request", map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		apperrors.Unauthorized(c, "")
		return 0, false
	}
	return userID, true
}

// uintParam parses a positive path parameter, answering 400 otherwise.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid path parameter", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 ID 형식입니다")
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid request body", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "요청 데이터가 올바르지 않습니다")
		return false
	}
	return true
}

// fail logs err at a level matching its kind and writes the error response.
func fail(c *gin.Context, msg string, err error, fields logger.Fields) {
	log := middleware.GetLoggerFromContext(c)
	if apperrors.KindOf(err) == apperrors.KindActionFailed {
		log.Error(msg, err, fields)
	} else {
		if fields == nil {
			fields = logger.Fields{}
		}
		fields["error"] = err.Error()
		log.Warn(msg, fields)
	}
	apperrors.RespondWithAppError(c, err)
}
