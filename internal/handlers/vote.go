package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteLedger
	log   *logger.Logger
}

func NewVoteHandler(votes *services.VoteLedger, log *logger.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, log: log}
}

type voteRequest struct {
	Value int `json:"value" binding:"required,oneof=1 -1"`
}

// VotePost POST /api/posts/:id/vote
func (h *VoteHandler) VotePost(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	res, err := h.votes.ApplyPostVote(c.Request.Context(), currentUserID(c), c.Param("id"), req.Value)
	h.respond(c, res, err)
}

// RetractPost DELETE /api/posts/:id/vote
func (h *VoteHandler) RetractPost(c *gin.Context) {
	res, err := h.votes.RetractPostVote(c.Request.Context(), currentUserID(c), c.Param("id"))
	h.respond(c, res, err)
}

func (h *VoteHandler) VoteComment(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	res, err := h.votes.ApplyCommentVote(c.Request.Context(), currentUserID(c), c.Param("id"), req.Value)
	h.respond(c, res, err)
}

func (h *VoteHandler) RetractComment(c *gin.Context) {
	res, err := h.votes.RetractCommentVote(c.Request.Context(), currentUserID(c), c.Param("id"))
	h.respond(c, res, err)
}

func (h *VoteHandler) respond(c *gin.Context, res *services.VoteResult, err error) {
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
