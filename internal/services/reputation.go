package services

import (
	"context"

	"studyforum/internal/models"

	"gorm.io/gorm"
)

// 声望变动原因
const (
	ReasonPostUpvoted   = "post_upvoted"
	ReasonPostDownvoted = "post_downvoted"
	ReasonVoteRetracted = "post_vote_retracted"
)

// PointsPerPostVote 每票对作者声望的影响
const PointsPerPostVote = 10

// AdjustReputation 在调用方事务内写入明细并更新用户声望余额。
// 传入用户ID、变动值（正数增加，负数扣除）、原因和关联帖子ID
func AdjustReputation(tx *gorm.DB, userID string, amount int, reason, refID string) error {
	if amount == 0 {
		return nil
	}

	// 1. 创建声望明细记录
	event := models.ReputationEvent{
		UserID: userID,
		Amount: amount,
		Reason: reason,
		RefID:  refID,
	}
	if err := tx.Create(&event).Error; err != nil {
		return err
	}

	// 2. 更新用户声望余额
	return tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("reputation", gorm.Expr("reputation + ?", amount)).
		Error
}

type ReputationService struct {
	db *gorm.DB
}

func NewReputationService(db *gorm.DB) *ReputationService {
	return &ReputationService{db: db}
}

// Events 返回用户最近的声望明细，新的在前
func (s *ReputationService) Events(ctx context.Context, userID string, limit int) ([]models.ReputationEvent, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	events := make([]models.ReputationEvent, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, storageErr("list reputation events", err)
	}
	return events, nil
}
