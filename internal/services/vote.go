package services

import (
	"context"
	"errors"

	"studyforum/internal/apperr"
	"studyforum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteResult 返回给调用方的投票结果
type VoteResult struct {
	Delta int `json:"delta"` // 本次对计数器的变化量
	Votes int `json:"votes"` // 变更后的计数器
	Value int `json:"value"` // 调用者当前的票，0 表示未投票
}

// VoteLedger keeps one vote row per (user, target) and moves the target's
// votes counter (and, for posts, the author's reputation) in the same transaction.
type VoteLedger struct {
	db *gorm.DB
}

func NewVoteLedger(db *gorm.DB) *VoteLedger {
	return &VoteLedger{db: db}
}

func validateVote(userID, targetField, targetID string, value int) error {
	if err := requireID("userId", userID); err != nil {
		return err
	}
	if err := requireID(targetField, targetID); err != nil {
		return err
	}
	if value != 1 && value != -1 {
		return apperr.Invalid("value", "must be 1 or -1")
	}
	return nil
}

// lockPost 读取并锁定目标帖子，同一帖子上的投票因此串行
func lockPost(tx *gorm.DB, postID string) (*models.Post, error) {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "author_id", "votes").
		Where("id = ?", postID).
		Take(&post).Error
	if err != nil {
		return nil, notFoundOr("Post", "lock post", err)
	}
	return &post, nil
}

func lockComment(tx *gorm.DB, commentID string) (*models.Comment, error) {
	var comment models.Comment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "votes").
		Where("id = ?", commentID).
		Take(&comment).Error
	if err != nil {
		return nil, notFoundOr("Comment", "lock comment", err)
	}
	return &comment, nil
}

// applyPostDelta 更新帖子计数器，非本人投票时同步作者声望
func applyPostDelta(tx *gorm.DB, post *models.Post, voterID string, delta int, reason string) error {
	if delta == 0 {
		return nil
	}
	if err := tx.Model(&models.Post{}).
		Where("id = ?", post.ID).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta)).
		Error; err != nil {
		return err
	}
	if post.AuthorID == voterID {
		return nil
	}
	return AdjustReputation(tx, post.AuthorID, delta*PointsPerPostVote, reason, post.ID)
}

func applyCommentDelta(tx *gorm.DB, commentID string, delta int) error {
	if delta == 0 {
		return nil
	}
	return tx.Model(&models.Comment{}).
		Where("id = ?", commentID).
		UpdateColumn("votes", gorm.Expr("votes + ?", delta)).
		Error
}

// ApplyPostVote casts or changes the caller's vote on a post. Re-sending the
// same value is a no-op with Delta 0.
func (l *VoteLedger) ApplyPostVote(ctx context.Context, userID, postID string, value int) (*VoteResult, error) {
	if err := validateVote(userID, "postId", postID, value); err != nil {
		return nil, err
	}

	var res VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		old := 0
		var existing models.PostVote
		err = tx.Where("user_id = ? AND post_id = ?", userID, postID).Take(&existing).Error
		switch {
		case err == nil:
			old = existing.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		delta := value - old

		vote := models.PostVote{UserID: userID, PostID: postID, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&vote).Error; err != nil {
			return err
		}

		reason := ReasonPostUpvoted
		if value < 0 {
			reason = ReasonPostDownvoted
		}
		if err := applyPostDelta(tx, post, userID, delta, reason); err != nil {
			return err
		}

		res = VoteResult{Delta: delta, Votes: post.Votes + delta, Value: value}
		return nil
	})
	if err != nil {
		return nil, storageErr("apply post vote", err)
	}
	return &res, nil
}

// RetractPostVote removes the caller's vote. Retracting a missing vote is a no-op.
func (l *VoteLedger) RetractPostVote(ctx context.Context, userID, postID string) (*VoteResult, error) {
	if err := validateVote(userID, "postId", postID, 1); err != nil {
		return nil, err
	}

	var res VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, postID)
		if err != nil {
			return err
		}

		var existing models.PostVote
		err = tx.Where("user_id = ? AND post_id = ?", userID, postID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = VoteResult{Votes: post.Votes}
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.PostVote{}).Error; err != nil {
			return err
		}
		delta := -existing.Value
		if err := applyPostDelta(tx, post, userID, delta, ReasonVoteRetracted); err != nil {
			return err
		}

		res = VoteResult{Delta: delta, Votes: post.Votes + delta}
		return nil
	})
	if err != nil {
		return nil, storageErr("retract post vote", err)
	}
	return &res, nil
}

// ApplyCommentVote 与帖子投票相同，但不影响声望
func (l *VoteLedger) ApplyCommentVote(ctx context.Context, userID, commentID string, value int) (*VoteResult, error) {
	if err := validateVote(userID, "commentId", commentID, value); err != nil {
		return nil, err
	}

	var res VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comment, err := lockComment(tx, commentID)
		if err != nil {
			return err
		}

		old := 0
		var existing models.CommentVote
		err = tx.Where("user_id = ? AND comment_id = ?", userID, commentID).Take(&existing).Error
		switch {
		case err == nil:
			old = existing.Value
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		delta := value - old

		vote := models.CommentVote{UserID: userID, CommentID: commentID, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "comment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&vote).Error; err != nil {
			return err
		}
		if err := applyCommentDelta(tx, commentID, delta); err != nil {
			return err
		}

		res = VoteResult{Delta: delta, Votes: comment.Votes + delta, Value: value}
		return nil
	})
	if err != nil {
		return nil, storageErr("apply comment vote", err)
	}
	return &res, nil
}

func (l *VoteLedger) RetractCommentVote(ctx context.Context, userID, commentID string) (*VoteResult, error) {
	if err := validateVote(userID, "commentId", commentID, 1); err != nil {
		return nil, err
	}

	var res VoteResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comment, err := lockComment(tx, commentID)
		if err != nil {
			return err
		}

		var existing models.CommentVote
		err = tx.Where("user_id = ? AND comment_id = ?", userID, commentID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			res = VoteResult{Votes: comment.Votes}
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ? AND comment_id = ?", userID, commentID).Delete(&models.CommentVote{}).Error; err != nil {
			return err
		}
		delta := -existing.Value
		if err := applyCommentDelta(tx, commentID, delta); err != nil {
			return err
		}

		res = VoteResult{Delta: delta, Votes: comment.Votes + delta}
		return nil
	})
	if err != nil {
		return nil, storageErr("retract comment vote", err)
	}
	return &res, nil
}

// PostVoteOf 返回用户对帖子的当前投票，未投票为 0
func (l *VoteLedger) PostVoteOf(ctx context.Context, userID, postID string) (int, error) {
	var vote models.PostVote
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("load post vote", err)
	}
	return vote.Value, nil
}

// CommentVotesOf returns commentID -> value for the comments the user voted on.
func (l *VoteLedger) CommentVotesOf(ctx context.Context, userID string, commentIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	if userID == "" || len(commentIDs) == 0 {
		return out, nil
	}

	var votes []models.CommentVote
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Find(&votes).Error
	if err != nil {
		return nil, storageErr("load comment votes", err)
	}
	for _, v := range votes {
		out[v.CommentID] = v.Value
	}
	return out, nil
}
