package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"
	"studyforum/internal/models"
	"studyforum/internal/utils"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const summarySystemPrompt = "You are a helpful assistant that summarizes academic discussions. Provide clear, concise summaries that highlight the most important information."

// Summarizer 生成讨论摘要。结果只缓存不落库，键包含评论数和更新时间，内容变化后自然失效
type Summarizer struct {
	db       *gorm.DB
	provider Provider
	cache    utils.Cache
	ttl      time.Duration
	timeout  time.Duration
	group    singleflight.Group
	log      *logger.Logger
}

func NewSummarizer(db *gorm.DB, provider Provider, cache utils.Cache, ttl, timeout time.Duration, log *logger.Logger) *Summarizer {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Summarizer{
		db:       db,
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		timeout:  timeout,
		log:      log.With("service", "Summarizer"),
	}
}

type summaryComment struct {
	Author  string
	Content string
}

func summaryCacheKey(post *models.Post) string {
	return fmt.Sprintf("summary:%s:%d:%d", post.ID, post.CommentCount, post.UpdatedAt.UnixNano())
}

// BuildSummaryPrompt 把帖子和全部评论拼成一条用户消息
func BuildSummaryPrompt(title, content string, comments []summaryComment) string {
	parts := make([]string, 0, len(comments))
	for i, c := range comments {
		parts = append(parts, fmt.Sprintf("Comment %d by %s: %s", i+1, c.Author, c.Content))
	}
	return fmt.Sprintf(
		"Summarize this discussion concisely:\n\nTitle: %s\n\nOriginal Post:\n%s\n\nComments:\n%s\n\nProvide a clear, concise summary highlighting the key question, main answers, and important points discussed.",
		title, content, strings.Join(parts, "\n\n"),
	)
}

func (s *Summarizer) Summarize(ctx context.Context, postID string) (string, error) {
	if requireID("postId", postID) != nil {
		return "", apperr.NotFound("Post")
	}

	db := s.db.WithContext(ctx)
	var post models.Post
	if err := db.Where("id = ?", postID).Take(&post).Error; err != nil {
		return "", notFoundOr("Post", "load post", err)
	}

	key := summaryCacheKey(&post)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		// 合并后的请求可能服务多个调用方，不随单个请求取消
		detached := context.WithoutCancel(ctx)

		var comments []models.Comment
		if err := s.db.WithContext(detached).Preload("Author").
			Where("post_id = ?", post.ID).
			Order("created_at ASC").
			Find(&comments).Error; err != nil {
			return "", storageErr("load comments", err)
		}

		items := make([]summaryComment, len(comments))
		for i, c := range comments {
			items[i] = summaryComment{Author: c.Author.DisplayName(), Content: c.Content}
		}

		callCtx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()

		summary, err := s.provider.Complete(callCtx, []Message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: BuildSummaryPrompt(post.Title, post.Content, items)},
		})
		if err != nil {
			s.log.Warn("Summarize failed", "post", post.ID, "error", err)
			return "", apperr.Upstream(err)
		}

		if s.cache != nil {
			s.cache.Set(callCtx, key, summary, s.ttl)
		}
		return summary, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.log.Debug("Summary request collapsed", "post", post.ID)
	}
	return v.(string), nil
}
