package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studyforum/internal/apperr"
	"studyforum/internal/logger"
	"studyforum/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := BuildSummaryPrompt("Limits", "What is a limit?", []summaryComment{
		{Author: "Ada", Content: "Approach a value."},
		{Author: "Anonymous", Content: "See epsilon-delta."},
	})

	assert.Contains(t, prompt, "Title: Limits")
	assert.Contains(t, prompt, "Original Post:\nWhat is a limit?")
	assert.Contains(t, prompt, "Comment 1 by Ada: Approach a value.\n\nComment 2 by Anonymous: See epsilon-delta.")
}

func TestSummarizeUsesCacheUntilDiscussionChanges(t *testing.T) {
	gdb := newTestDB(t)
	p := &fakeProvider{summary: "A question about limits."}
	s := NewSummarizer(gdb, p, utils.NewLocalCache(16), time.Minute, time.Minute, logger.Nop())
	ctx := context.Background()

	a := createUser(t, gdb, "Ada")
	post := createPost(t, gdb, a)
	createComment(t, gdb, a, post, nil)

	out, err := s.Summarize(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "A question about limits.", out)

	_, err = s.Summarize(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.complete)
	assert.Contains(t, p.calls[0][1].Content, "Comment 1 by Ada: reply")

	// 新评论改变缓存键
	_, err = NewCommentService(gdb).Create(ctx, a.ID, CreateCommentInput{PostID: post.ID, Content: "another"})
	require.NoError(t, err)
	_, err = s.Summarize(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.complete)
}

func TestSummarizeCollapsesConcurrentRequests(t *testing.T) {
	gdb := newTestDB(t)
	gate := make(chan struct{})
	p := &fakeProvider{summary: "ok", gate: gate}
	s := NewSummarizer(gdb, p, nil, time.Minute, time.Minute, logger.Nop())

	a := createUser(t, gdb, "Ada")
	post := createPost(t, gdb, a)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Summarize(context.Background(), post.ID)
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}()
	}

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.complete == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, p.complete, 5)
	assert.GreaterOrEqual(t, p.complete, 1)
}

func TestSummarizeErrors(t *testing.T) {
	gdb := newTestDB(t)
	p := &fakeProvider{err: errors.New("quota exceeded")}
	s := NewSummarizer(gdb, p, nil, time.Minute, time.Minute, logger.Nop())

	_, err := s.Summarize(context.Background(), uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	a := createUser(t, gdb, "Ada")
	post := createPost(t, gdb, a)
	_, err = s.Summarize(context.Background(), post.ID)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.NotContains(t, err.(*apperr.Error).Message, "quota")
}

// cancelOnMiss 模拟调用方在缓存未命中后立即断开
type cancelOnMiss struct {
	utils.Cache
	cancel context.CancelFunc
}

func (c *cancelOnMiss) Get(ctx context.Context, key string) (string, bool) {
	c.cancel()
	return c.Cache.Get(ctx, key)
}

func TestSummarizeSurvivesLeaderDisconnect(t *testing.T) {
	gdb := newTestDB(t)
	p := &fakeProvider{summary: "still summarized"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewSummarizer(gdb, p, &cancelOnMiss{Cache: utils.NewLocalCache(16), cancel: cancel}, time.Minute, time.Minute, logger.Nop())

	a := createUser(t, gdb, "Ada")
	post := createPost(t, gdb, a)
	createComment(t, gdb, a, post, nil)

	out, err := s.Summarize(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "still summarized", out)
	require.Len(t, p.calls, 1)
	assert.NoError(t, p.ctxErrs[0])
	assert.Contains(t, p.calls[0][1].Content, "Comment 1 by Ada: reply")
}
