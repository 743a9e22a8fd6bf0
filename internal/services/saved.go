package services

import (
	"context"

	"studyforum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedPostService 收藏，保存与取消均幂等
type SavedPostService struct {
	db *gorm.DB
}

func NewSavedPostService(db *gorm.DB) *SavedPostService {
	return &SavedPostService{db: db}
}

func (s *SavedPostService) Save(ctx context.Context, userID, postID string) error {
	if err := requireID("userId", userID); err != nil {
		return err
	}
	if err := requireID("postId", postID); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var post models.Post
	if err := db.Select("id").Where("id = ?", postID).Take(&post).Error; err != nil {
		return notFoundOr("Post", "load post", err)
	}

	saved := models.SavedPost{UserID: userID, PostID: postID}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&saved).Error
	return storageErr("save post", err)
}

func (s *SavedPostService) Unsave(ctx context.Context, userID, postID string) error {
	if err := requireID("postId", postID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.SavedPost{}).Error
	return storageErr("unsave post", err)
}

// List returns the user's saved posts, most recently saved first.
func (s *SavedPostService) List(ctx context.Context, userID string) ([]models.Post, error) {
	var saved []models.SavedPost
	err := s.db.WithContext(ctx).
		Preload("Post").
		Preload("Post.Author").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&saved).Error
	if err != nil {
		return nil, storageErr("list saved posts", err)
	}

	posts := make([]models.Post, 0, len(saved))
	for _, sp := range saved {
		if sp.Post != nil {
			posts = append(posts, *sp.Post)
		}
	}
	return posts, nil
}

func (s *SavedPostService) IsSaved(ctx context.Context, userID, postID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, storageErr("check saved post", err)
	}
	return count > 0, nil
}
