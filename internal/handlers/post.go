package handlers

import (
	"net/http"

	"studyforum/internal/logger"
	"studyforum/internal/middleware"
	"studyforum/internal/models"
	"studyforum/internal/services"
	"studyforum/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts *services.PostService
	votes *services.VoteLedger
	saved *services.SavedPostService
	log   *logger.Logger
}

func NewPostHandler(posts *services.PostService, votes *services.VoteLedger, saved *services.SavedPostService, log *logger.Logger) *PostHandler {
	return &PostHandler{posts: posts, votes: votes, saved: saved, log: log}
}

// PostDetail 详情页数据，附带当前用户的投票和收藏状态
type PostDetail struct {
	*models.Post
	UserVote int  `json:"userVote"`
	Saved    bool `json:"saved"`
}

// List GET /api/posts?board&sortBy&limit&offset
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), services.ListPostsOptions{
		Board:  c.Query("board"),
		SortBy: c.Query("sortBy"),
		Limit:  utils.StringToInt(c.Query("limit")),
		Offset: utils.StringToInt(c.Query("offset")),
	})
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.posts.Get(ctx, c.Param("id"))
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	post.ContentHTML = utils.RenderMarkdown(post.Content)

	detail := PostDetail{Post: post}
	// 登录用户实时查询投票和收藏状态
	if userID := currentUserID(c); userID != "" {
		if detail.UserVote, err = h.votes.PostVoteOf(ctx, userID, post.ID); err != nil {
			RespondError(c, h.log, err)
			return
		}
		if detail.Saved, err = h.saved.IsSaved(ctx, userID, post.ID); err != nil {
			RespondError(c, h.log, err)
			return
		}
	}
	c.JSON(http.StatusOK, detail)
}

func (h *PostHandler) Create(c *gin.Context) {
	var in services.CreatePostInput
	if !bindJSON(c, h.log, &in) {
		return
	}

	user := middleware.CurrentUser(c)
	post, err := h.posts.Create(c.Request.Context(), user.ID, in)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	post.Author = user
	h.log.Info("Post created", "post", post.ID, "board", post.Board, "author", user.ID)
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var in services.UpdatePostInput
	if !bindJSON(c, h.log, &in) {
		return
	}

	post, err := h.posts.Update(c.Request.Context(), currentUserID(c), c.Param("id"), in)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.posts.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		RespondError(c, h.log, err)
		return
	}
	h.log.Info("Post deleted", "post", id, "user", currentUserID(c))
	c.Status(http.StatusNoContent)
}
