package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/domain"
)

func register(t *testing.T, f *fixture, name string) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), name, name+"@x.com", "pw")
	require.NoError(t, err)
	return res
}

func strp(s string) *string { return &s }

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := register(t, f, "alice")
	login, err := f.auth.Login(ctx, "alice@x.com", "pw")
	require.NoError(t, err)
	id, err := f.auth.Verify(login.Token)
	require.NoError(t, err)
	require.Equal(t, alice.User.ID, id.UserID)

	created, err := f.projects.Create(ctx, id.UserID, CreateProjectInput{Name: "Demo", Technology: "React"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanning, created.Status)
	assert.Equal(t, alice.User, created.Owner)
	assert.Empty(t, created.Collaborators)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	deployed := domain.StatusDeployed
	_, err = f.projects.Update(ctx, id.UserID, created.ID, domain.ProjectPatch{Status: &deployed})
	require.NoError(t, err)

	list, err := f.projects.ListVisible(ctx, id.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusDeployed, list[0].Status)
	assert.True(t, list[0].UpdatedAt.After(list[0].CreatedAt))
	assert.True(t, list[0].CreatedAt.Equal(created.CreatedAt))

	res, err := f.projects.Delete(ctx, id.UserID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Project deleted successfully", res.Message)

	list, err = f.projects.ListVisible(ctx, id.UserID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateThenList_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := register(t, f, "alice")
	b := register(t, f, "bob")

	p, err := f.projects.Create(ctx, a.User.ID, CreateProjectInput{Name: "Tracker", Description: "internal tool", Technology: "Go"})
	require.NoError(t, err)

	mine, err := f.projects.ListVisible(ctx, a.User.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)
	assert.Equal(t, "Tracker", mine[0].Name)
	assert.Equal(t, "internal tool", mine[0].Description)
	assert.Equal(t, "Go", mine[0].Technology)
	assert.Equal(t, domain.StatusPlanning, mine[0].Status)

	theirs, err := f.projects.ListVisible(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCreate_RequiresNameAndTechnology(t *testing.T) {
	f := newFixture(t)
	a := register(t, f, "alice")
	for _, in := range []CreateProjectInput{
		{Technology: "Go"},
		{Name: "x"},
		{Name: "  ", Technology: "Go"},
	} {
		_, err := f.projects.Create(context.Background(), a.User.ID, in)
		assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err), "%+v", in)
	}
}

func TestUpdate_StrangerSeesNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := register(t, f, "alice")
	c := register(t, f, "carol")
	p, err := f.projects.Create(ctx, a.User.ID, CreateProjectInput{Name: "Demo", Technology: "React"})
	require.NoError(t, err)

	patch := domain.ProjectPatch{Name: strp("hijacked")}
	_, denied := f.projects.Update(ctx, c.User.ID, p.ID, patch)
	_, missing := f.projects.Update(ctx, c.User.ID, "does-not-exist", patch)
	require.Error(t, denied)
	require.Error(t, missing)
	assert.Equal(t, http.StatusNotFound, apperr.CodeOf(denied))
	assert.Equal(t, apperr.CodeOf(missing), apperr.CodeOf(denied))
	assert.Equal(t, apperr.PublicMessage(missing), apperr.PublicMessage(denied))
	assert.Equal(t, "Project not found", apperr.PublicMessage(denied))

	list, err := f.projects.ListVisible(ctx, a.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", list[0].Name)
}

func TestCollaboratorUpdatesButCannotDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := register(t, f, "alice")
	b := register(t, f, "bob")
	p, err := f.projects.Create(ctx, a.User.ID, CreateProjectInput{Name: "Demo", Technology: "React"})
	require.NoError(t, err)

	collab := []string{b.User.ID}
	withBob, err := f.projects.Update(ctx, a.User.ID, p.ID, domain.ProjectPatch{Collaborators: &collab})
	require.NoError(t, err)
	require.Len(t, withBob.Collaborators, 1)
	assert.Equal(t, b.User, withBob.Collaborators[0])

	qa := domain.StatusTesting
	upd, err := f.projects.Update(ctx, b.User.ID, p.ID, domain.ProjectPatch{Status: &qa, Description: strp("qa")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTesting, upd.Status)
	assert.Equal(t, "qa", upd.Description)
	assert.Equal(t, a.User.ID, upd.Owner.ID)

	_, err = f.projects.Delete(ctx, b.User.ID, p.ID)
	assert.Equal(t, http.StatusNotFound, apperr.CodeOf(err))

	visible, err := f.projects.ListVisible(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := register(t, f, "alice")
	p, err := f.projects.Create(ctx, a.User.ID, CreateProjectInput{Name: "Demo", Technology: "React"})
	require.NoError(t, err)

	bad := domain.Status("archived")
	for _, patch := range []domain.ProjectPatch{
		{Status: &bad},
		{Name: strp(" ")},
		{Technology: strp("")},
	} {
		_, err := f.projects.Update(ctx, a.User.ID, p.ID, patch)
		assert.Equal(t, http.StatusBadRequest, apperr.CodeOf(err))
	}

	upd, err := f.projects.Update(ctx, a.User.ID, p.ID, domain.ProjectPatch{Name: strp("  Renamed ")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", upd.Name)
}

func TestDelete_Missing(t *testing.T) {
	f := newFixture(t)
	a := register(t, f, "alice")
	_, err := f.projects.Delete(context.Background(), a.User.ID, "nope")
	assert.Equal(t, http.StatusNotFound, apperr.CodeOf(err))
}

func TestUpdate_RealClockAlwaysAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	f.projects.now = time.Now
	ctx := context.Background()
	a := register(t, f, "alice")
	deployed := domain.StatusDeployed

	for i := 0; i < 20; i++ {
		p, err := f.projects.Create(ctx, a.User.ID, CreateProjectInput{Name: "Demo", Technology: "React"})
		require.NoError(t, err)
		u, err := f.projects.Update(ctx, a.User.ID, p.ID, domain.ProjectPatch{Status: &deployed})
		require.NoError(t, err)
		require.True(t, u.UpdatedAt.After(u.CreatedAt), "run %d: updatedAt %v createdAt %v", i, u.UpdatedAt, u.CreatedAt)

		again, err := f.projects.Update(ctx, a.User.ID, p.ID, domain.ProjectPatch{Status: &deployed})
		require.NoError(t, err, "identical update right after")
		require.True(t, again.UpdatedAt.After(u.UpdatedAt))
	}
}
