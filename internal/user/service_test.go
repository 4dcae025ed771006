package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/listenup/internal/errors"
	"github.com/victornm/listenup/internal/memory"
	"github.com/victornm/listenup/internal/user"
)

func TestService_Signup(t *testing.T) {
	ctx := context.Background()
	s := makeService()

	u, err := s.Signup(ctx, user.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Zero(t, u.Points)
	assert.True(t, u.ConsumedQuestions.IsEmpty())
	assert.NotEqual(t, []byte("secret1"), u.PasswordHash, "password must be hashed")

	_, err = s.Signup(ctx, user.Credentials{Username: "alice", Password: "another"})
	assert.True(t, errors.Is(err, errors.CodeAlreadyExists), "got %v", err)
}

func TestService_SignupValidation(t *testing.T) {
	tests := map[string]user.Credentials{
		"empty username":    {Password: "secret1"},
		"short password":    {Username: "alice", Password: "123"},
		"username with dot": {Username: "al.ice", Password: "secret1"},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := makeService().Signup(context.Background(), req)
			assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	s := makeService()

	created, err := s.Signup(ctx, user.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	u, err := s.Login(ctx, user.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = s.Login(ctx, user.Credentials{Username: "alice", Password: "wrong-pass"})
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)

	_, err = s.Login(ctx, user.Credentials{Username: "bob", Password: "secret1"})
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	s := makeService()

	u, err := s.Signup(ctx, user.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, s.ChangePassword(ctx, user.ChangePasswordRequest{UserID: u.ID, Password: "secret2"}))

	_, err = s.Login(ctx, user.Credentials{Username: "alice", Password: "secret1"})
	assert.True(t, errors.Is(err, errors.CodeUnauthenticated))

	_, err = s.Login(ctx, user.Credentials{Username: "alice", Password: "secret2"})
	assert.NoError(t, err)

	err = s.ChangePassword(ctx, user.ChangePasswordRequest{UserID: 404, Password: "secret3"})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}

func TestTokens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := user.NewTokens(user.TokenConfig{
		Secret: []byte("secret"),
		TTL:    time.Hour,
		Now:    func() time.Time { return now },
	})

	tok, err := tokens.Issue(user.Principal{UserID: 7, SessionID: "s1"})
	require.NoError(t, err)

	p, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, user.Principal{UserID: 7, SessionID: "s1"}, p)

	t.Run("expired", func(t *testing.T) {
		later := user.NewTokens(user.TokenConfig{
			Secret: []byte("secret"),
			Now:    func() time.Time { return now.Add(2 * time.Hour) },
		})
		_, err := later.Parse(tok)
		assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := user.NewTokens(user.TokenConfig{Secret: []byte("other"), Now: func() time.Time { return now }})
		_, err := other.Parse(tok)
		assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "7", "sid": "s1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tokens.Parse(unsigned)
		assert.True(t, errors.Is(err, errors.CodeUnauthenticated), "got %v", err)
	})
}

func makeService() *user.Service {
	return user.NewService(user.Config{
		Repo: memory.NewStore(),
		Cost: bcrypt.MinCost,
	})
}
