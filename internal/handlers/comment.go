package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/middleware"
	"studyforum/internal/services"
	"studyforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *services.CommentService
	votes    *services.VoteLedger
	log      *logger.Logger
}

func NewCommentHandler(comments *services.CommentService, votes *services.VoteLedger, log *logger.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, votes: votes, log: log}
}

// ListForPost GET /api/posts/:id/comments[?tree=true]
func (h *CommentHandler) ListForPost(c *gin.Context) {
	ctx := c.Request.Context()
	comments, err := h.comments.ListForPost(ctx, c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	for i := range comments {
		comments[i].ContentHTML = utils.RenderMarkdown(comments[i].Content)
	}

	if !utils.ParseBool(c.Query("tree")) {
		c.JSON(http.StatusOK, comments)
		return
	}

	ids := make([]string, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}
	userVotes, err := h.votes.CommentVotesOf(ctx, currentUserID(c), ids)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, services.BuildCommentTree(comments, userVotes))
}

// Create POST /api/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var in services.CreateCommentInput
	if !bindJSON(c, h.log, &in) {
		return
	}

	user := middleware.CurrentUser(c)
	comment, err := h.comments.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	comment.Author = user
	comment.ContentHTML = utils.RenderMarkdown(comment.Content)
	c.JSON(http.StatusCreated, comment)
}

// Delete DELETE /api/comments/:id，连同回复一起删除
func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
