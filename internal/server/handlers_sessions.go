package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TimyBen/cloud-file-management-system/internal/metrics"
)

type startSessionRequest struct {
	FileID string `json:"fileId" binding:"required"`
}

func (a *App) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := actorFrom(c)
	s, err := a.coordinator.Start(c.Request.Context(), actor, req.FileID)
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.SessionsStartedTotal.Inc()
	c.JSON(http.StatusCreated, s)
}

type joinSessionRequest struct {
	DisplayName string `json:"displayName"`
}

func (a *App) joinSession(c *gin.Context) {
	var req joinSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	actor := actorFrom(c)
	displayName := req.DisplayName
	if displayName == "" {
		displayName = actor.Email
	}
	p, err := a.coordinator.Join(c.Request.Context(), actor, c.Param("id"), displayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *App) leaveSession(c *gin.Context) {
	actor := actorFrom(c)
	if err := a.coordinator.Leave(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left session"})
}

// endSession is idempotent: ending an already ended session returns the
// same terminal record with 200.
func (a *App) endSession(c *gin.Context) {
	actor := actorFrom(c)
	s, err := a.coordinator.End(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (a *App) listParticipants(c *gin.Context) {
	actor := actorFrom(c)
	participants, err := a.coordinator.ListParticipants(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}
