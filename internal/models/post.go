package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Post struct {
	ID           string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title        string                      `gorm:"size:300;not null" json:"title"`
	Content      string                      `gorm:"type:text;not null" json:"content"`
	AuthorID     string                      `gorm:"type:varchar(36);not null;index" json:"authorId"`
	Author       *User                       `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author,omitempty"`
	Board        Board                       `gorm:"size:20;not null;index" json:"board"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Votes        int                         `gorm:"not null;default:0" json:"votes"`
	CommentCount int                         `gorm:"not null;default:0" json:"commentCount"`
	CreatedAt    time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`

	// 非数据库字段，详情页填充
	ContentHTML string `gorm:"-" json:"contentHtml,omitempty"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
