package services

import (
	"context"
	"strings"

	"studyforum/internal/apperr"
	"studyforum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateCommentInput struct {
	PostID   string  `json:"postId" binding:"required"`
	ParentID *string `json:"parentId"`
	Content  string  `json:"content" binding:"required"`
}

// CommentNode 评论树节点，回复按创建时间升序
type CommentNode struct {
	models.Comment
	UserVote int            `json:"userVote"`
	Replies  []*CommentNode `json:"replies"`
}

type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

// Create inserts the comment and bumps the post's commentCount in one transaction.
func (s *CommentService) Create(ctx context.Context, authorID string, in CreateCommentInput) (*models.Comment, error) {
	if err := requireID("authorId", authorID); err != nil {
		return nil, err
	}
	if err := requireID("postId", in.PostID); err != nil {
		return nil, err
	}
	parentID := in.ParentID
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}
	if parentID != nil {
		if err := requireID("parentId", *parentID); err != nil {
			return nil, err
		}
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Invalid("content", "is required")
	}

	comment := models.Comment{
		Content:  content,
		AuthorID: authorID,
		PostID:   in.PostID,
		ParentID: parentID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住帖子行，与删除评论串行
		if err := lockPostForComment(tx, in.PostID); err != nil {
			return err
		}

		if parentID != nil {
			var parent models.Comment
			if err := tx.Select("id", "post_id").Where("id = ?", *parentID).Take(&parent).Error; err != nil {
				return notFoundOr("Parent comment", "load parent comment", err)
			}
			if parent.PostID != in.PostID {
				return apperr.Invalid("parentId", "must belong to the same post")
			}
		}

		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", in.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).
			Error
	})
	if err != nil {
		return nil, storageErr("create comment", err)
	}

	if err := s.db.WithContext(ctx).Preload("Author").Where("id = ?", comment.ID).Take(&comment).Error; err != nil {
		return nil, storageErr("load comment", err)
	}
	return &comment, nil
}

// ListForPost 返回帖子下的全部评论（扁平，按时间升序）
func (s *CommentService) ListForPost(ctx context.Context, postID string) ([]models.Comment, error) {
	if err := requireID("postId", postID); err != nil {
		return nil, apperr.NotFound("Post")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return nil, storageErr("load post", err)
	}
	if count == 0 {
		return nil, apperr.NotFound("Post")
	}

	comments := make([]models.Comment, 0)
	err := s.db.WithContext(ctx).Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, storageErr("list comments", err)
	}
	return comments, nil
}

// BuildCommentTree groups a flat, time-ordered list by parent. Comments whose
// parent is not in the list are treated as roots.
func BuildCommentTree(flat []models.Comment, userVotes map[string]int) []*CommentNode {
	nodes := make(map[string]*CommentNode, len(flat))
	for i := range flat {
		nodes[flat[i].ID] = &CommentNode{
			Comment:  flat[i],
			UserVote: userVotes[flat[i].ID],
			Replies:  []*CommentNode{},
		}
	}

	roots := make([]*CommentNode, 0)
	for i := range flat {
		node := nodes[flat[i].ID]
		if flat[i].ParentID != nil {
			if parent, ok := nodes[*flat[i].ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// Delete 作者删除评论及其全部回复，同时扣减帖子评论数
func (s *CommentService) Delete(ctx context.Context, userID, commentID string) error {
	if err := requireID("id", commentID); err != nil {
		return apperr.NotFound("Comment")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "author_id", "post_id").Where("id = ?", commentID).Take(&comment).Error; err != nil {
			return notFoundOr("Comment", "load comment", err)
		}
		if comment.AuthorID != userID {
			return apperr.Forbidden("Only the author can delete this comment")
		}
		// 先锁帖子再收集子树，期间不会有新回复写入
		if err := lockPostForComment(tx, comment.PostID); err != nil {
			return err
		}

		ids, err := collectSubtree(tx, commentID)
		if err != nil {
			return err
		}

		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentVote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - ?", res.RowsAffected)).
			Error
	})
	return storageErr("delete comment", err)
}

func lockPostForComment(tx *gorm.DB, postID string) error {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", postID).
		Take(&post).Error
	return notFoundOr("Post", "lock post", err)
}

// collectSubtree 按层展开回复，返回包含根在内的全部评论ID
func collectSubtree(tx *gorm.DB, rootID string) ([]string, error) {
	ids := []string{rootID}
	frontier := []string{rootID}
	for len(frontier) > 0 {
		var children []string
		if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		ids = append(ids, children...)
		frontier = children
	}
	return ids, nil
}
