package domain

import (
	"context"
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string // "user"/"admin"
	CreatedAt    time.Time
}

// UserView is the public projection of a User; the hash never leaves the service.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// ErrDuplicate is returned by repositories when a unique index rejects a write.
var ErrDuplicate = errors.New("duplicate key")

// UserRepository is the credential store. Finders return (nil, nil) when no
// record matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	FindByIDs(ctx context.Context, ids []string) ([]User, error)
	Count(ctx context.Context) (int64, error)
}
