package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/services"
	"studyforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users      *services.UserService
	posts      *services.PostService
	reputation *services.ReputationService
	log        *logger.Logger
}

func NewUserHandler(users *services.UserService, posts *services.PostService, reputation *services.ReputationService, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, posts: posts, reputation: reputation, log: log}
}

// Profile 用户主页：声望、等级、发帖和评论数
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) Posts(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")
	if _, err := h.users.Get(ctx, userID); err != nil {
		RespondError(c, h.log, err)
		return
	}

	posts, err := h.posts.ListByAuthor(ctx, userID,
		utils.StringToInt(c.Query("limit")),
		utils.StringToInt(c.Query("offset")))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// Reputation GET /api/users/me/reputation，最近的声望变动
func (h *UserHandler) Reputation(c *gin.Context) {
	events, err := h.reputation.Events(c.Request.Context(), currentUserID(c), utils.StringToInt(c.Query("limit")))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
