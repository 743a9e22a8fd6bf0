package services

import (
	"context"
	"strings"
	"testing"

	"studyforum/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewUserService(gdb)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Ada@Example.com ", Password: "lovelace1", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "lovelace1", u.Password)
	assert.Zero(t, u.Reputation)

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "another-pass"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "short"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	for _, bad := range []string{"", "not-an-email", "bob@", "Bob <bob@example.com>"} {
		_, err = svc.Register(ctx, RegisterInput{Email: bad, Password: "lovelace1"})
		assert.True(t, apperr.Is(err, apperr.KindValidation), bad)
	}
	_, err = svc.Register(ctx, RegisterInput{Email: "carol@example.com", Password: strings.Repeat("x", 73)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := svc.Authenticate(ctx, "ADA@example.com", "lovelace1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = svc.Authenticate(ctx, "nobody@example.com", "lovelace1")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestProfileCounts(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewUserService(gdb)
	ledger := NewVoteLedger(gdb)
	ctx := context.Background()

	a := createUser(t, gdb, "Alice")
	b := createUser(t, gdb, "Bob")
	p := createPost(t, gdb, a)
	createComment(t, gdb, a, p, nil)
	_, err := ledger.ApplyPostVote(ctx, b.ID, p.ID, 1)
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.PostCount)
	assert.Equal(t, int64(1), profile.CommentCount)
	assert.Equal(t, 10, profile.User.Reputation)
	assert.Equal(t, "Newcomer", profile.Level)

	events, err := NewReputationService(gdb).Events(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].Amount)
	assert.Equal(t, ReasonPostUpvoted, events[0].Reason)
	assert.Equal(t, p.ID, events[0].RefID)
}
