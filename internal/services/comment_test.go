package services

import (
	"context"
	"sync"
	"testing"

	"studyforum/internal/apperr"
	"studyforum/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateCommentIncrementsOnlyItsPost(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewCommentService(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	p := createPost(t, gdb, a)
	sibling := createPost(t, gdb, a)

	c, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: " Use L'Hopital. "})
	require.NoError(t, err)
	assert.Equal(t, "Use L'Hopital.", c.Content)
	assert.Nil(t, c.ParentID)
	require.NotNil(t, c.Author)

	assert.Equal(t, 1, reload[models.Post](t, gdb, p.ID).CommentCount)
	assert.Equal(t, 0, reload[models.Post](t, gdb, sibling.ID).CommentCount)
}

func TestCreateCommentChecksParent(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewCommentService(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	p := createPost(t, gdb, a)
	other := createPost(t, gdb, a)
	foreign := createComment(t, gdb, a, other, nil)

	_, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, ParentID: &foreign.ID, Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	missing := uuid.NewString()
	_, err = svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, ParentID: &missing, Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Create(ctx, a.ID, CreateCommentInput{PostID: uuid.NewString(), Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Equal(t, 0, reload[models.Post](t, gdb, p.ID).CommentCount)
}

func TestBuildCommentTree(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewCommentService(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	p := createPost(t, gdb, a)

	root, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: "root"})
	require.NoError(t, err)
	reply, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, ParentID: &root.ID, Content: "reply"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, ParentID: &reply.ID, Content: "nested"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: "second root"})
	require.NoError(t, err)

	flat, err := svc.ListForPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, flat, 4)

	tree := BuildCommentTree(flat, map[string]int{reply.ID: 1})
	require.Len(t, tree, 2)
	assert.Equal(t, "root", tree[0].Content)
	assert.Equal(t, "second root", tree[1].Content)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, 1, tree[0].Replies[0].UserVote)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, "nested", tree[0].Replies[0].Replies[0].Content)
	assert.Empty(t, tree[1].Replies)
}

func TestDeleteCommentRemovesSubtree(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewCommentService(gdb)
	ledger := NewVoteLedger(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	b := createUser(t, gdb, "Bob")
	p := createPost(t, gdb, a)

	root, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: "root"})
	require.NoError(t, err)
	reply, err := svc.Create(ctx, b.ID, CreateCommentInput{PostID: p.ID, ParentID: &root.ID, Content: "reply"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, b.ID, CreateCommentInput{PostID: p.ID, Content: "keep"})
	require.NoError(t, err)
	_, err = ledger.ApplyCommentVote(ctx, b.ID, reply.ID, 1)
	require.NoError(t, err)

	assert.True(t, apperr.Is(svc.Delete(ctx, b.ID, root.ID), apperr.KindForbidden))
	require.NoError(t, svc.Delete(ctx, a.ID, root.ID))

	flat, err := svc.ListForPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, "keep", flat[0].Content)
	assert.Equal(t, 1, reload[models.Post](t, gdb, p.ID).CommentCount)

	var votes int64
	gdb.Model(&models.CommentVote{}).Count(&votes)
	assert.Zero(t, votes)
}

// 删除与并发回复交错时，评论数始终等于实际评论行数
func TestDeleteCommentWithConcurrentRepliesKeepsCount(t *testing.T) {
	gdb := newTestDB(t)
	assertDeleteRaceKeepsCount(t, gdb, 8)
}

func assertDeleteRaceKeepsCount(t *testing.T, gdb *gorm.DB, repliers int) {
	t.Helper()
	svc := NewCommentService(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	b := createUser(t, gdb, "Bob")
	p := createPost(t, gdb, a)
	root, err := svc.Create(ctx, a.ID, CreateCommentInput{PostID: p.ID, Content: "root"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, b.ID, CreateCommentInput{PostID: p.ID, Content: "sibling"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < repliers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, b.ID, CreateCommentInput{PostID: p.ID, ParentID: &root.ID, Content: "reply"})
			if err != nil {
				assert.True(t, apperr.Is(err, apperr.KindNotFound), err.Error())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Delete(ctx, a.ID, root.ID))
	}()
	wg.Wait()

	var rows int64
	require.NoError(t, gdb.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&rows).Error)
	assert.EqualValues(t, rows, reload[models.Post](t, gdb, p.ID).CommentCount)
	assert.EqualValues(t, 1, rows)
}
