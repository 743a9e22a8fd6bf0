package services

import (
	"fmt"
	"strings"
	"testing"

	"studyforum/internal/db"
	"studyforum/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB 为每个测试创建独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.OpenSQLite(fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8]))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func createUser(t *testing.T, gdb *gorm.DB, firstName string) *models.User {
	t.Helper()
	u := models.User{
		Email:     strings.ToLower(firstName) + "-" + uuid.NewString()[:6] + "@example.com",
		Password:  "x",
		FirstName: firstName,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return &u
}

func createPost(t *testing.T, gdb *gorm.DB, author *models.User) *models.Post {
	t.Helper()
	p := models.Post{Title: "How do limits work?", Content: "Explain epsilon-delta.", AuthorID: author.ID, Board: models.BoardMath}
	require.NoError(t, gdb.Create(&p).Error)
	return &p
}

func createComment(t *testing.T, gdb *gorm.DB, author *models.User, post *models.Post, parentID *string) *models.Comment {
	t.Helper()
	c := models.Comment{Content: "reply", AuthorID: author.ID, PostID: post.ID, ParentID: parentID}
	require.NoError(t, gdb.Create(&c).Error)
	return &c
}

func reload[T any](t *testing.T, gdb *gorm.DB, id string) *T {
	t.Helper()
	var out T
	require.NoError(t, gdb.Where("id = ?", id).Take(&out).Error)
	return &out
}

func postVotes(t *testing.T, gdb *gorm.DB, id string) int {
	return reload[models.Post](t, gdb, id).Votes
}

func reputation(t *testing.T, gdb *gorm.DB, id string) int {
	return reload[models.User](t, gdb, id).Reputation
}
