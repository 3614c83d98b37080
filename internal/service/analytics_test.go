package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-tracker/internal/core/cache"
	"project-tracker/internal/domain"
)

func seedStats(t *testing.T, f *fixture) (alice, bob *AuthResult) {
	t.Helper()
	ctx := context.Background()
	alice = register(t, f, "alice")
	bob = register(t, f, "bob")

	_, err := f.projects.Create(ctx, alice.User.ID, CreateProjectInput{Name: "A", Technology: "Go"})
	require.NoError(t, err)
	b, err := f.projects.Create(ctx, alice.User.ID, CreateProjectInput{Name: "B", Technology: "React"})
	require.NoError(t, err)
	_, err = f.projects.Create(ctx, alice.User.ID, CreateProjectInput{Name: "C", Technology: "Go"})
	require.NoError(t, err)
	_, err = f.projects.Create(ctx, bob.User.ID, CreateProjectInput{Name: "D", Technology: "Rust"})
	require.NoError(t, err)

	deployed := domain.StatusDeployed
	_, err = f.projects.Update(ctx, alice.User.ID, b.ID, domain.ProjectPatch{Status: &deployed})
	require.NoError(t, err)
	return alice, bob
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	alice, bob := seedStats(t, f)

	st, err := f.stats.Stats(context.Background(), alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalUsers)
	assert.Equal(t, int64(4), st.TotalProjects)
	assert.Equal(t, int64(3), st.UserProjects)
	assert.Equal(t, []domain.GroupCount{{Key: "planning", Count: 2}, {Key: "deployed", Count: 1}}, st.ProjectsByStatus)
	assert.Equal(t, []domain.GroupCount{{Key: "Go", Count: 2}, {Key: "React", Count: 1}}, st.ProjectsByTechnology)

	st, err = f.stats.Stats(context.Background(), bob.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.UserProjects)
	assert.Equal(t, []domain.GroupCount{{Key: "Rust", Count: 1}}, st.ProjectsByTechnology)
}

func TestStats_NoVisibleProjects(t *testing.T) {
	f := newFixture(t)
	carol := register(t, f, "carol")
	st, err := f.stats.Stats(context.Background(), carol.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalUsers)
	assert.Zero(t, st.UserProjects)
	assert.NotNil(t, st.ProjectsByStatus)
	assert.Empty(t, st.ProjectsByStatus)
}

func TestStats_CachedPerUser(t *testing.T) {
	f := newFixture(t)
	alice, bob := seedStats(t, f)
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f.stats.WithCache(c, time.Minute)
	ctx := context.Background()

	first, err := f.stats.Stats(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("stats:"+alice.User.ID))

	// alice's own write drops her entry
	_, err = f.projects.Create(ctx, alice.User.ID, CreateProjectInput{Name: "E", Technology: "Go"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("stats:"+alice.User.ID))

	afterOwn, err := f.stats.Stats(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UserProjects+1, afterOwn.UserProjects)

	// bob's private project only moves the global total, which waits for the TTL
	_, err = f.projects.Create(ctx, bob.User.ID, CreateProjectInput{Name: "F", Technology: "Rust"})
	require.NoError(t, err)
	cached, err := f.stats.Stats(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, afterOwn, cached)

	mr.FastForward(2 * time.Minute)
	fresh, err := f.stats.Stats(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, afterOwn.TotalProjects+1, fresh.TotalProjects)
}

func TestStats_CacheDisabledWithoutTTL(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	f.stats.WithCache(cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), 0)
	carol := register(t, f, "carol")

	_, err := f.stats.Stats(context.Background(), carol.User.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("stats:"+carol.User.ID))
}

func TestStats_UpdateDropsEveryMembersEntry(t *testing.T) {
	f := newFixture(t)
	alice, bob := seedStats(t, f)
	mr := miniredis.RunT(t)
	f.stats.WithCache(cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), time.Minute)
	ctx := context.Background()

	p, err := f.projects.Create(ctx, alice.User.ID, CreateProjectInput{Name: "Shared", Technology: "Go"})
	require.NoError(t, err)
	collab := []string{bob.User.ID}
	_, err = f.projects.Update(ctx, alice.User.ID, p.ID, domain.ProjectPatch{Collaborators: &collab})
	require.NoError(t, err)

	for _, u := range []*AuthResult{alice, bob} {
		_, err := f.stats.Stats(ctx, u.User.ID)
		require.NoError(t, err)
		require.True(t, mr.Exists("stats:"+u.User.ID))
	}

	qa := domain.StatusTesting
	_, err = f.projects.Update(ctx, bob.User.ID, p.ID, domain.ProjectPatch{Status: &qa})
	require.NoError(t, err)
	assert.False(t, mr.Exists("stats:"+alice.User.ID), "owner")
	assert.False(t, mr.Exists("stats:"+bob.User.ID), "collaborator")
}
