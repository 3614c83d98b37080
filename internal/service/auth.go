package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/core/auth"
	"project-tracker/internal/domain"
)

const (
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgTokenRequired      = "Access token required"
	msgTokenInvalid       = "Invalid or expired token"
)

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Compare(hash, pw string) bool
}

type TokenIssuer interface {
	Issue(uid, username string) (string, error)
	Parse(tok string) (*auth.Claims, error)
}

// Identity is what a verified bearer token proves about the caller.
type Identity struct {
	UserID   string
	Username string
}

type AuthResult struct {
	Token string          `json:"token"`
	User  domain.UserView `json:"user"`
}

type AuthService struct {
	users  domain.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time
}

func NewAuthService(users domain.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, apperr.InvalidInput("Username, email and password are required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperr.InvalidInput("Password must be at most 72 bytes")
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, apperr.FromStore("check user", err)
	}
	if exists {
		return nil, apperr.Conflict(msgUserExists)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apperr.Conflict(msgUserExists)
		}
		return nil, apperr.FromStore("create user", err)
	}
	return s.issue(u)
}

// Login fails identically for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.FromStore("find user", err)
	}
	if u == nil || !s.hasher.Compare(u.PasswordHash, password) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	return s.issue(u)
}

func (s *AuthService) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, apperr.Unauthenticated(msgTokenRequired)
	}
	c, err := s.tokens.Parse(token)
	if err != nil || c == nil {
		return nil, apperr.Forbidden(msgTokenInvalid)
	}
	return &Identity{UserID: c.UID, Username: c.Username}, nil
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	tok, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &AuthResult{Token: tok, User: u.View()}, nil
}
