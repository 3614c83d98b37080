package project

import (
	"time"

	"project-tracker/internal/domain"
)

type ProjectModel struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Technology  string `gorm:"size:128;not null;index"`
	Status      string `gorm:"size:16;not null;default:planning;index;check:chk_projects_status,status IN ('planning','development','testing','deployed')"`
	OwnerID     string `gorm:"type:varchar(36);not null;index"`

	Collaborators []CollaboratorModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (ProjectModel) TableName() string { return "projects" }

// CollaboratorModel is one (project, user) grant; the composite key keeps the
// collaborator list a set.
type CollaboratorModel struct {
	ProjectID string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey;type:varchar(36);index"`
}

func (CollaboratorModel) TableName() string { return "project_collaborators" }

func FromDomain(p *domain.Project) *ProjectModel {
	m := &ProjectModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Technology:  p.Technology,
		Status:      string(p.Status),
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, uid := range Dedupe(p.CollaboratorIDs) {
		m.Collaborators = append(m.Collaborators, CollaboratorModel{ProjectID: p.ID, UserID: uid})
	}
	return m
}

func (m *ProjectModel) ToDomain() domain.Project {
	p := domain.Project{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Technology:      m.Technology,
		Status:          domain.Status(m.Status),
		OwnerID:         m.OwnerID,
		CollaboratorIDs: make([]string, 0, len(m.Collaborators)),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, c := range m.Collaborators {
		p.CollaboratorIDs = append(p.CollaboratorIDs, c.UserID)
	}
	return p
}

// Dedupe keeps the first occurrence of each non-empty id.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
