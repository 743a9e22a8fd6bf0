package models

import (
	"time"
)

// SavedPost 收藏关系，(user, post) 唯一
type SavedPost struct {
	UserID    string    `gorm:"type:varchar(36);primaryKey" json:"userId"`
	User      *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	PostID    string    `gorm:"type:varchar(36);primaryKey;index" json:"postId"`
	Post      *Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
