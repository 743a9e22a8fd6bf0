package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/services"

	"github.com/gin-gonic/gin"
)

type SavedPostHandler struct {
	saved *services.SavedPostService
	log   *logger.Logger
}

func NewSavedPostHandler(saved *services.SavedPostService, log *logger.Logger) *SavedPostHandler {
	return &SavedPostHandler{saved: saved, log: log}
}

func (h *SavedPostHandler) List(c *gin.Context) {
	posts, err := h.saved.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// Save 重复收藏不报错
func (h *SavedPostHandler) Save(c *gin.Context) {
	if err := h.saved.Save(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *SavedPostHandler) Unsave(c *gin.Context) {
	if err := h.saved.Unsave(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": false})
}

func (h *SavedPostHandler) Status(c *gin.Context) {
	saved, err := h.saved.IsSaved(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}
