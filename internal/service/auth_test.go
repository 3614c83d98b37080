package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/core/auth"
	"project-tracker/internal/domain"
	"project-tracker/internal/repo"
)

func TestRegister_IssuesTokenAndView(t *testing.T) {
	db := newTestDB(t)
	tokens := &mockTokens{}
	tokens.On("Issue", mock.AnythingOfType("string"), "alice").Return("tok-1", nil).Once()
	s := NewAuthService(repo.NewUserRepo(db), plainHasher{}, tokens)

	res, err := s.Register(context.Background(), " alice ", "alice@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, "alice@x.com", res.User.Email)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.NotEmpty(t, res.User.ID)
	tokens.AssertExpectations(t)

	stored, err := repo.NewUserRepo(db).FindByEmail(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "plain:pw", stored.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ username, email, password string }{
		{"", "a@x.com", "pw"},
		{"a", "  ", "pw"},
		{"a", "a@x.com", ""},
	}
	for _, c := range cases {
		_, err := f.auth.Register(context.Background(), c.username, c.email, c.password)
		assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err), "%+v", c)
	}
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t)
	s := NewAuthService(repo.NewUserRepo(f.db), auth.NewBcryptHasher(4), auth.NewJWTer("test-secret", "project-tracker", time.Hour))
	ctx := context.Background()

	_, err := s.Register(ctx, "bob", "bob@x.com", strings.Repeat("p", 80))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err))
	assert.Equal(t, "Password must be at most 72 bytes", apperr.PublicMessage(err))

	edge := strings.Repeat("p", auth.MaxPasswordBytes)
	_, err = s.Register(ctx, "bob", "bob@x.com", edge)
	require.NoError(t, err)
	_, err = s.Login(ctx, "bob@x.com", edge)
	assert.NoError(t, err)
}

func TestRegister_DuplicateKeepsFirstToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.auth.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, "alice2", "alice@x.com", "pw")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err))
	assert.Equal(t, "User already exists", apperr.PublicMessage(err))

	_, err = f.auth.Register(ctx, "alice", "other@x.com", "pw")
	assert.Equal(t, "User already exists", apperr.PublicMessage(err))

	id, err := f.auth.Verify(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, id.UserID)
	assert.Equal(t, "alice", id.Username)
}

// racyUsers passes the existence pre-check but loses on insert.
type racyUsers struct {
	domain.UserRepository
}

func (racyUsers) ExistsByEmailOrUsername(context.Context, string, string) (bool, error) {
	return false, nil
}

func (racyUsers) Create(context.Context, *domain.User) error { return domain.ErrDuplicate }

func TestRegister_UniqueIndexRace(t *testing.T) {
	s := NewAuthService(racyUsers{}, plainHasher{}, &mockTokens{})
	_, err := s.Register(context.Background(), "bob", "bob@x.com", "pw")
	assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err))
	assert.Equal(t, "User already exists", apperr.PublicMessage(err))
}

type slowUsers struct {
	domain.UserRepository
}

func (slowUsers) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, context.DeadlineExceeded
}

func TestLogin_StoreTimeoutIsUnavailable(t *testing.T) {
	s := NewAuthService(slowUsers{}, plainHasher{}, &mockTokens{})
	_, err := s.Login(context.Background(), "a@x.com", "pw")
	assert.Equal(t, http.StatusServiceUnavailable, apperr.CodeOf(err))
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "alice@x.com", "pw")
	require.NoError(t, err)

	_, wrongPw := f.auth.Login(ctx, "alice@x.com", "nope")
	_, noUser := f.auth.Login(ctx, "ghost@x.com", "pw")
	require.Error(t, wrongPw)
	require.Error(t, noUser)
	assert.Equal(t, http.StatusUnauthorized, apperr.CodeOf(wrongPw))
	assert.Equal(t, apperr.CodeOf(wrongPw), apperr.CodeOf(noUser))
	assert.Equal(t, apperr.PublicMessage(wrongPw), apperr.PublicMessage(noUser))
	assert.Equal(t, "Invalid credentials", apperr.PublicMessage(noUser))

	ok, err := f.auth.Login(ctx, "alice@x.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, ok.Token)
	assert.Equal(t, "alice", ok.User.Username)
}

func TestVerify(t *testing.T) {
	tokens := &mockTokens{}
	tokens.On("Parse", "good").Return(&auth.Claims{UID: "u1", Username: "alice"}, nil)
	tokens.On("Parse", "bad").Return(nil, errors.New("signature is invalid"))
	s := NewAuthService(nil, plainHasher{}, tokens)

	_, err := s.Verify("")
	assert.Equal(t, http.StatusUnauthorized, apperr.CodeOf(err))
	assert.Equal(t, "Access token required", apperr.PublicMessage(err))

	_, err = s.Verify("bad")
	assert.Equal(t, http.StatusForbidden, apperr.CodeOf(err))
	assert.Equal(t, "Invalid or expired token", apperr.PublicMessage(err))

	id, err := s.Verify("good")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Username: "alice"}, *id)
}

func TestVerify_ExpiredToken(t *testing.T) {
	j := auth.NewJWTer("s", "project-tracker", -time.Minute)
	tok, err := j.Issue("u1", "alice")
	require.NoError(t, err)

	s := NewAuthService(nil, plainHasher{}, j)
	_, err = s.Verify(tok)
	assert.Equal(t, http.StatusForbidden, apperr.CodeOf(err))
}
