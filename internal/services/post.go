package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"studyforum/internal/apperr"
	"studyforum/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SortHot = "hot"
	SortNew = "new"
	SortTop = "top"

	DefaultPageSize = 50
	MaxPageSize     = 100

	maxTitleLength = 300
	maxTags        = 10
	maxTagLength   = 32
)

type CreatePostInput struct {
	Title   string   `json:"title" binding:"required,max=300"`
	Content string   `json:"content" binding:"required"`
	Board   string   `json:"board" binding:"required"`
	Tags    []string `json:"tags" binding:"max=10,dive,max=32"`
}

// UpdatePostInput nil 字段表示不修改
type UpdatePostInput struct {
	Title   *string  `json:"title" binding:"omitempty,max=300"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags" binding:"omitempty,max=10,dive,max=32"`
}

type ListPostsOptions struct {
	Board  string
	SortBy string
	Limit  int
	Offset int
}

type PostService struct {
	db *gorm.DB
}

func NewPostService(db *gorm.DB) *PostService {
	return &PostService{db: db}
}

// NormalizeTags 去除空白与重复，保持原始顺序
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateTags(tags []string) error {
	if len(tags) > maxTags {
		return apperr.Invalid("tags", "at most 10 tags are allowed")
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > maxTagLength {
			return apperr.Invalid("tags", "each tag must be at most 32 characters")
		}
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperr.Invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return apperr.Invalid("title", "must be at most 300 characters")
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (*models.Post, error) {
	if err := requireID("authorId", authorID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	tags := NormalizeTags(in.Tags)

	fields := map[string]string{}
	if err := validateTitle(title); err != nil {
		fields["title"] = err.(*apperr.Error).Fields["title"]
	}
	if content == "" {
		fields["content"] = "is required"
	}
	if !models.Board(in.Board).Valid() {
		fields["board"] = "must be one of Math, Science, Coding, Writing, Exams"
	}
	if err := validateTags(tags); err != nil {
		fields["tags"] = err.(*apperr.Error).Fields["tags"]
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid request data", fields)
	}

	post := models.Post{
		Title:    title,
		Content:  content,
		AuthorID: authorID,
		Board:    models.Board(in.Board),
		Tags:     datatypes.JSONSlice[string](tags),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, storageErr("create post", err)
	}
	return s.Get(ctx, post.ID)
}

func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	if err := requireID("id", id); err != nil {
		return nil, apperr.NotFound("Post")
	}
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("Author").Where("id = ?", id).Take(&post).Error; err != nil {
		return nil, notFoundOr("Post", "load post", err)
	}
	return &post, nil
}

// normalizePage 默认 50，上限 100
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns a page of posts. Every ordering ends with id so paging is stable.
func (s *PostService) List(ctx context.Context, opts ListPostsOptions) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Preload("Author")

	if opts.Board != "" {
		if !models.Board(opts.Board).Valid() {
			return nil, apperr.Invalid("board", "must be one of Math, Science, Coding, Writing, Exams")
		}
		q = q.Where("board = ?", opts.Board)
	}

	switch opts.SortBy {
	case SortNew:
		q = q.Order("created_at DESC").Order("id DESC")
	case SortTop:
		q = q.Order("votes DESC").Order("id DESC")
	case SortHot, "":
		q = q.Order("votes DESC").Order("created_at DESC").Order("id DESC")
	default:
		return nil, apperr.Invalid("sortBy", "must be one of hot, new, top")
	}

	limit, offset := normalizePage(opts.Limit, opts.Offset)
	posts := make([]models.Post, 0)
	if err := q.Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, storageErr("list posts", err)
	}
	return posts, nil
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]models.Post, error) {
	if err := requireID("userId", authorID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	posts := make([]models.Post, 0)
	err := s.db.WithContext(ctx).Preload("Author").
		Where("author_id = ?", authorID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, storageErr("list user posts", err)
	}
	return posts, nil
}

// Update lets the author edit title, content and tags.
func (s *PostService) Update(ctx context.Context, userID, postID string, in UpdatePostInput) (*models.Post, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, apperr.Forbidden("Only the author can edit this post")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, apperr.Invalid("content", "is required")
		}
		updates["content"] = content
	}
	if in.Tags != nil {
		tags := NormalizeTags(in.Tags)
		if err := validateTags(tags); err != nil {
			return nil, err
		}
		updates["tags"] = datatypes.JSONSlice[string](tags)
	}
	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).Updates(updates).Error; err != nil {
		return nil, storageErr("update post", err)
	}
	return s.Get(ctx, post.ID)
}

// Delete 作者删除帖子，在一个事务中清理评论、投票和收藏
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	if err := requireID("id", postID); err != nil {
		return apperr.NotFound("Post")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "author_id").
			Where("id = ?", postID).
			Take(&post).Error
		if err != nil {
			return notFoundOr("Post", "load post", err)
		}
		if post.AuthorID != userID {
			return apperr.Forbidden("Only the author can delete this post")
		}

		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.SavedPost{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, "id = ?", postID).Error
	})
	return storageErr("delete post", err)
}

// BoardSummaries 返回固定板块列表及各自帖子数
func (s *PostService) BoardSummaries(ctx context.Context) ([]models.BoardInfo, error) {
	var rows []struct {
		Board string
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("board, COUNT(*) AS count").
		Group("board").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count posts by board", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Board] = r.Count
	}
	out := make([]models.BoardInfo, len(models.Boards))
	for i, b := range models.Boards {
		out[i] = b
		out[i].PostCount = counts[string(b.Name)]
	}
	return out, nil
}
