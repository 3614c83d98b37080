package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/domain"
)

const (
	msgProjectNotFound = "Project not found"
	msgProjectDeleted  = "Project deleted successfully"
)

type ProjectView struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Technology    string            `json:"technology"`
	Status        domain.Status     `json:"status"`
	Owner         domain.UserView   `json:"owner"`
	Collaborators []domain.UserView `json:"collaborators"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type CreateProjectInput struct {
	Name        string
	Description string
	Technology  string
}

type DeleteResult struct {
	Message string `json:"message"`
}

// StatsInvalidator is told which users' stats a project write changed.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string)
}

type ProjectService struct {
	projects domain.ProjectRepository
	users    domain.UserRepository
	stats    StatsInvalidator
	now      func() time.Time
}

func NewProjectService(projects domain.ProjectRepository, users domain.UserRepository) *ProjectService {
	return &ProjectService{projects: projects, users: users, now: time.Now}
}

func (s *ProjectService) WithStatsInvalidator(inv StatsInvalidator) *ProjectService {
	s.stats = inv
	return s
}

func (s *ProjectService) touched(ctx context.Context, userIDs ...string) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, userIDs...)
	}
}

func (s *ProjectService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *ProjectService) ListVisible(ctx context.Context, userID string) ([]ProjectView, error) {
	ps, err := s.projects.ListVisible(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("list projects", err)
	}
	return s.resolve(ctx, ps)
}

func (s *ProjectService) Create(ctx context.Context, userID string, in CreateProjectInput) (*ProjectView, error) {
	name, tech := strings.TrimSpace(in.Name), strings.TrimSpace(in.Technology)
	if name == "" || tech == "" {
		return nil, apperr.InvalidInput("Name and technology are required")
	}
	now := s.clock()
	p := domain.Project{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     in.Description,
		Technology:      tech,
		Status:          domain.StatusPlanning,
		OwnerID:         userID,
		CollaboratorIDs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.projects.Create(ctx, &p); err != nil {
		return nil, apperr.FromStore("create project", err)
	}
	s.touched(ctx, userID)
	return s.resolveOne(ctx, p)
}

// Update applies patch if the caller owns or collaborates on the project.
// A project the caller cannot access is reported exactly like a missing one.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, patch domain.ProjectPatch) (*ProjectView, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}
	p, err := s.projects.UpdateAccessible(ctx, projectID, userID, patch, s.clock())
	if err != nil {
		return nil, apperr.FromStore("update project", err)
	}
	if p == nil {
		return nil, apperr.NotFound(msgProjectNotFound)
	}
	s.touched(ctx, append([]string{userID, p.OwnerID}, p.CollaboratorIDs...)...)
	return s.resolveOne(ctx, *p)
}

// Delete is owner-only; collaborators get the same NotFound as strangers.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) (*DeleteResult, error) {
	ok, err := s.projects.DeleteOwned(ctx, projectID, userID)
	if err != nil {
		return nil, apperr.FromStore("delete project", err)
	}
	if !ok {
		return nil, apperr.NotFound(msgProjectNotFound)
	}
	s.touched(ctx, userID)
	return &DeleteResult{Message: msgProjectDeleted}, nil
}

func validatePatch(p *domain.ProjectPatch) error {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if v == "" {
			return apperr.InvalidInput("Name cannot be empty")
		}
		p.Name = &v
	}
	if p.Technology != nil {
		v := strings.TrimSpace(*p.Technology)
		if v == "" {
			return apperr.InvalidInput("Technology cannot be empty")
		}
		p.Technology = &v
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.InvalidInput("Invalid status")
	}
	return nil
}

func (s *ProjectService) resolveOne(ctx context.Context, p domain.Project) (*ProjectView, error) {
	vs, err := s.resolve(ctx, []domain.Project{p})
	if err != nil {
		return nil, err
	}
	return &vs[0], nil
}

// resolve swaps user ids for public user views with one lookup for the batch.
func (s *ProjectService) resolve(ctx context.Context, ps []domain.Project) ([]ProjectView, error) {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, p := range ps {
		add(p.OwnerID)
		for _, c := range p.CollaboratorIDs {
			add(c)
		}
	}

	byID := make(map[string]domain.UserView, len(ids))
	if len(ids) > 0 {
		us, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, apperr.FromStore("resolve users", err)
		}
		for i := range us {
			byID[us[i].ID] = us[i].View()
		}
	}
	view := func(id string) domain.UserView {
		if v, ok := byID[id]; ok {
			return v
		}
		return domain.UserView{ID: id}
	}

	out := make([]ProjectView, 0, len(ps))
	for _, p := range ps {
		pv := ProjectView{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Technology:    p.Technology,
			Status:        p.Status,
			Owner:         view(p.OwnerID),
			Collaborators: make([]domain.UserView, 0, len(p.CollaboratorIDs)),
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
		for _, c := range p.CollaboratorIDs {
			pv.Collaborators = append(pv.Collaborators, view(c))
		}
		out = append(out, pv)
	}
	return out, nil
}
