package api

import (
	"github.com/gin-gonic/gin"
)

// AudioRecord resolves a record link and streams the backing file.
// The link can be passed either as a ?link= parameter or by requesting
// the record URL directly, in which case the raw query is the link tail
func (a *API) AudioRecord(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	link := c.Query("link")
	if link == "" {
		link = c.Request.URL.RawQuery
	}

	path, name, err := a.Manager.ResolveLink(link)
	if err != nil {
		a.abortWithServiceError(c, requestID, err)
		return
	}

	c.FileAttachment(path, name)
}
