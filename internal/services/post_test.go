package services

import (
	"context"
	"testing"
	"time"

	"studyforum/internal/apperr"
	"studyforum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePostNormalizesInput(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	a := createUser(t, gdb, "Alice")

	post, err := svc.Create(context.Background(), a.ID, CreatePostInput{
		Title:   "  Integration by parts  ",
		Content: "When do I pick u?",
		Board:   "Math",
		Tags:    []string{"calculus", " Calculus ", "", "integrals"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Integration by parts", post.Title)
	assert.Equal(t, []string{"calculus", "integrals"}, []string(post.Tags))
	assert.Equal(t, 0, post.Votes)
	assert.Equal(t, 0, post.CommentCount)
	require.NotNil(t, post.Author)
	assert.Equal(t, a.ID, post.Author.ID)
}

func TestCreatePostValidation(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	a := createUser(t, gdb, "Alice")

	_, err := svc.Create(context.Background(), a.ID, CreatePostInput{Title: " ", Content: "", Board: "History"})
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "title")
	assert.Contains(t, appErr.Fields, "content")
	assert.Contains(t, appErr.Fields, "board")

	var count int64
	gdb.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestListPostsOrderingAndPaging(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	ctx := context.Background()
	a := createUser(t, gdb, "Alice")

	base := time.Now().UTC().Add(-time.Hour)
	mk := func(title string, board models.Board, votes int, age time.Duration) *models.Post {
		p := models.Post{Title: title, Content: "c", AuthorID: a.ID, Board: board, Votes: votes, CreatedAt: base.Add(age)}
		require.NoError(t, gdb.Create(&p).Error)
		return p2(p)
	}
	old := mk("old-popular", models.BoardMath, 5, 0)
	mid := mk("mid", models.BoardScience, 1, 10*time.Minute)
	fresh := mk("fresh", models.BoardMath, 5, 20*time.Minute)

	newest, err := svc.List(ctx, ListPostsOptions{SortBy: SortNew})
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID, mid.ID, old.ID}, ids(newest))

	hot, err := svc.List(ctx, ListPostsOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID, old.ID, mid.ID}, ids(hot))

	math, err := svc.List(ctx, ListPostsOptions{Board: "Math", SortBy: SortTop, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, math, 1)
	assert.Equal(t, models.BoardMath, math[0].Board)

	_, err = svc.List(ctx, ListPostsOptions{SortBy: "random"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.List(ctx, ListPostsOptions{Board: "Art"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func p2(p models.Post) *models.Post { return &p }

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestNormalizePage(t *testing.T) {
	l, o := normalizePage(0, -5)
	assert.Equal(t, DefaultPageSize, l)
	assert.Equal(t, 0, o)
	l, _ = normalizePage(1000, 0)
	assert.Equal(t, MaxPageSize, l)
}

func TestUpdatePostAuthorOnly(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	ctx := context.Background()
	a := createUser(t, gdb, "Alice")
	b := createUser(t, gdb, "Bob")
	p := createPost(t, gdb, a)

	title := "Edited"
	_, err := svc.Update(ctx, b.ID, p.ID, UpdatePostInput{Title: &title})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	updated, err := svc.Update(ctx, a.ID, p.ID, UpdatePostInput{Title: &title, Tags: []string{"limits"}})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, []string{"limits"}, []string(updated.Tags))
	assert.Equal(t, p.Content, updated.Content)
}

func TestDeletePostCascades(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	ledger := NewVoteLedger(gdb)
	saved := NewSavedPostService(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	b := createUser(t, gdb, "Bob")
	p := createPost(t, gdb, a)
	other := createPost(t, gdb, a)
	c := createComment(t, gdb, b, p, nil)
	createComment(t, gdb, a, p, &c.ID)
	createComment(t, gdb, a, other, nil)

	_, err := ledger.ApplyPostVote(ctx, b.ID, p.ID, 1)
	require.NoError(t, err)
	_, err = ledger.ApplyCommentVote(ctx, a.ID, c.ID, 1)
	require.NoError(t, err)
	require.NoError(t, saved.Save(ctx, b.ID, p.ID))

	assert.True(t, apperr.Is(svc.Delete(ctx, b.ID, p.ID), apperr.KindForbidden))
	require.NoError(t, svc.Delete(ctx, a.ID, p.ID))

	_, err = svc.Get(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	var comments, postVotes, commentVotes, savedRows int64
	gdb.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)
	gdb.Model(&models.PostVote{}).Count(&postVotes)
	gdb.Model(&models.CommentVote{}).Count(&commentVotes)
	gdb.Model(&models.SavedPost{}).Count(&savedRows)
	assert.Zero(t, comments)
	assert.Zero(t, postVotes)
	assert.Zero(t, commentVotes)
	assert.Zero(t, savedRows)

	list, err := saved.List(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 其他帖子不受影响
	var remaining int64
	gdb.Model(&models.Comment{}).Where("post_id = ?", other.ID).Count(&remaining)
	assert.Equal(t, int64(1), remaining)
}

func TestBoardSummaries(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewPostService(gdb)
	a := createUser(t, gdb, "Alice")
	createPost(t, gdb, a)
	createPost(t, gdb, a)

	boards, err := svc.BoardSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, boards, len(models.Boards))
	assert.Equal(t, models.BoardMath, boards[0].Name)
	assert.Equal(t, int64(2), boards[0].PostCount)
	assert.Equal(t, int64(0), boards[1].PostCount)
}
