package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

type createShareRequest struct {
	FileID       string `json:"fileId" binding:"required"`
	TargetUserID string `json:"targetUserId" binding:"required"`
	Permission   string `json:"permission" binding:"required"`
}

func (a *App) createShare(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perm := domain.Permission(req.Permission)
	if !perm.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permission must be read, write, or comment"})
		return
	}

	actor := actorFrom(c)
	sh, err := a.registry.Share(c.Request.Context(), req.FileID, actor.ID, req.TargetUserID, perm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

type updateShareRequest struct {
	Permission string `json:"permission" binding:"required"`
}

func (a *App) updateShare(c *gin.Context) {
	var req updateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perm := domain.Permission(req.Permission)
	if !perm.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permission must be read, write, or comment"})
		return
	}

	actor := actorFrom(c)
	sh, err := a.registry.Update(c.Request.Context(), c.Param("id"), actor.ID, perm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

func (a *App) revokeShare(c *gin.Context) {
	actor := actorFrom(c)
	sh, err := a.registry.Revoke(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "share revoked", "share": sh})
}

func (a *App) listShares(c *gin.Context) {
	actor := actorFrom(c)
	shares, err := a.registry.ListActiveFor(c.Request.Context(), c.Param("fileId"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
