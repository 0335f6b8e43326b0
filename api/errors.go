package api

import (
	"bitwise74/audio-api/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// abortWithServiceError maps lifecycle errors onto HTTP responses.
// Not-found and malformed-link failures share one response so callers
// can't probe which records exist
func (a *API) abortWithServiceError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateAsset):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "This record already exists",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrTranscode):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "File is not a readable wav recording",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrLinkFormat):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Record not found or check your link",
			"requestID": requestID,
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Asset operation failed", zap.Error(err), zap.String("requestID", requestID))
	}
}
