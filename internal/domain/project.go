package domain

import (
	"context"
	"time"
)

type Status string

const (
	StatusPlanning    Status = "planning"
	StatusDevelopment Status = "development"
	StatusTesting     Status = "testing"
	StatusDeployed    Status = "deployed"
)

var Statuses = []Status{StatusPlanning, StatusDevelopment, StatusTesting, StatusDeployed}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Project struct {
	ID              string
	Name            string
	Description     string
	Technology      string
	Status          Status
	OwnerID         string // fixed at creation
	CollaboratorIDs []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProjectPatch holds the top-level fields a caller may overwrite. Nil means
// "not provided"; a provided Collaborators replaces the whole set.
type ProjectPatch struct {
	Name          *string
	Description   *string
	Technology    *string
	Status        *Status
	Collaborators *[]string
}

// GroupField names a column the analytics aggregation may group by.
type GroupField string

const (
	GroupByStatus     GroupField = "status"
	GroupByTechnology GroupField = "technology"
)

type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ProjectRepository is the project store. Access checks are part of the
// write filters: UpdateAccessible and DeleteOwned touch nothing and report
// false when the caller lacks access, exactly as when the id does not exist.
type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	ListVisible(ctx context.Context, uid string) ([]Project, error)
	UpdateAccessible(ctx context.Context, id, uid string, patch ProjectPatch, now time.Time) (*Project, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountVisible(ctx context.Context, uid string) (int64, error)
	GroupVisible(ctx context.Context, uid string, field GroupField) ([]GroupCount, error)
}
