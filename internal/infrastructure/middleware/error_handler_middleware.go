package middleware

import (
	"net/http"

	"weylus/pkg/errors"
	"weylus/pkg/result"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders errors attached with c.Error as a result
// envelope, unless the handler already wrote a response.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := errors.FromSessionError(err)

		logger.Errorw("control request failed",
			"code", appErr.Code,
			"message", appErr.Message,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err,
		)

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, result.Error[struct{}](appErr, appErr.Message))
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorw("panic recovered",
					"error", rec,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				appErr := errors.NewInternalError("internal server error")
				c.AbortWithStatusJSON(http.StatusInternalServerError, result.Error[struct{}](appErr, appErr.Message))
			}
		}()

		c.Next()
	}
}
