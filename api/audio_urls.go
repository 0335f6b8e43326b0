package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AudioURLs lists every stored recording with a freshly generated
// record link. Links embed the host the request came in on
func (a *API) AudioURLs(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	urls, err := a.Manager.ListAllWithLinks(c.Request.Host)
	if err != nil {
		a.abortWithServiceError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, urls)
}
