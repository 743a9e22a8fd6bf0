package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReputationEvent 声望变动明细，与 users.reputation 在同一事务中写入
type ReputationEvent struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	User      *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"` // 正数为增加，负数为扣除
	Reason    string    `gorm:"size:100;not null" json:"reason"`
	RefID     string    `gorm:"type:varchar(36);index" json:"refId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (e *ReputationEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
