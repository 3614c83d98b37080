package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"project-tracker/internal/core/auth"
	"project-tracker/internal/core/database"
	"project-tracker/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// plainHasher skips bcrypt's work factor.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "plain:" + pw, nil }
func (plainHasher) Compare(hash, pw string) bool   { return hash == "plain:"+pw }

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) Issue(uid, username string) (string, error) {
	args := m.Called(uid, username)
	return args.String(0), args.Error(1)
}

func (m *mockTokens) Parse(tok string) (*auth.Claims, error) {
	args := m.Called(tok)
	c, _ := args.Get(0).(*auth.Claims)
	return c, args.Error(1)
}

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	db       *gorm.DB
	auth     *AuthService
	projects *ProjectService
	stats    *AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	users, projects := repo.NewUserRepo(db), repo.NewProjectRepo(db)
	clock := newStepClock()

	as := NewAuthService(users, plainHasher{}, auth.NewJWTer("test-secret", "project-tracker", time.Hour))
	stats := NewAnalyticsService(users, projects, nil)
	ps := NewProjectService(projects, users).WithStatsInvalidator(stats)
	ps.now = clock.Now

	return &fixture{
		db:       db,
		auth:     as,
		projects: ps,
		stats:    stats,
	}
}
