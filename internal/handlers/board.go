package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/services"

	"github.com/gin-gonic/gin"
)

type BoardHandler struct {
	posts *services.PostService
	log   *logger.Logger
}

func NewBoardHandler(posts *services.PostService, log *logger.Logger) *BoardHandler {
	return &BoardHandler{posts: posts, log: log}
}

// ListBoards GET /api/boards
func (h *BoardHandler) ListBoards(c *gin.Context) {
	boards, err := h.posts.BoardSummaries(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, boards)
}
