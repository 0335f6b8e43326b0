package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) AudioDeleteByAdmin(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	recordID := c.Query("record_id")
	if recordID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "record_id is missing",
			"requestID": requestID,
		})
		return
	}

	deleted, err := a.Manager.DeleteAsAdmin(recordID)
	if err != nil {
		a.abortWithServiceError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, deleted)
}

func (a *API) AudioDeleteByUser(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	recordID := c.Query("record_id")
	if recordID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "record_id is missing",
			"requestID": requestID,
		})
		return
	}

	deleted, err := a.Manager.DeleteAsOwner(recordID, userID)
	if err != nil {
		a.abortWithServiceError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, deleted)
}
