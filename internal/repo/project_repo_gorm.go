package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"project-tracker/internal/domain"
	"project-tracker/internal/feature/project"
)

// visibleSQL matches projects the user owns or collaborates on.
const visibleSQL = "(owner_id = ? OR id IN (SELECT project_id FROM project_collaborators WHERE user_id = ?))"

type ProjectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) *ProjectRepo { return &ProjectRepo{db: db} }

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	if !p.Status.Valid() {
		return fmt.Errorf("project status %q: %w", p.Status, gorm.ErrCheckConstraintViolated)
	}
	return r.db.WithContext(ctx).Create(project.FromDomain(p)).Error
}

func (r *ProjectRepo) ListVisible(ctx context.Context, uid string) ([]domain.Project, error) {
	var ms []project.ProjectModel
	err := r.db.WithContext(ctx).
		Preload("Collaborators").
		Where(visibleSQL, uid, uid).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToDomain())
	}
	return out, nil
}

func (r *ProjectRepo) UpdateAccessible(ctx context.Context, id, uid string, patch domain.ProjectPatch, now time.Time) (*domain.Project, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("project status %q: %w", *patch.Status, gorm.ErrCheckConstraintViolated)
	}
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Technology != nil {
		updates["technology"] = *patch.Technology
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}

	var out *domain.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur project.ProjectModel
		err := tx.Select("id", "updated_at").
			Where("id = ?", id).
			Where(visibleSQL, uid, uid).
			Take(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		updates["updated_at"] = bumpedAt(cur.UpdatedAt, now)
		if err := tx.Model(&project.ProjectModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if patch.Collaborators != nil {
			if err := tx.Where("project_id = ?", id).Delete(&project.CollaboratorModel{}).Error; err != nil {
				return err
			}
			ids := project.Dedupe(*patch.Collaborators)
			if len(ids) > 0 {
				rows := make([]project.CollaboratorModel, 0, len(ids))
				for _, cid := range ids {
					rows = append(rows, project.CollaboratorModel{ProjectID: id, UserID: cid})
				}
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}

		var m project.ProjectModel
		if err := tx.Preload("Collaborators").First(&m, "id = ?", id).Error; err != nil {
			return err
		}
		p := m.ToDomain()
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// bumpedAt is the updated_at for a write landing at now on a row last
// written at prev. It is at least 1ms past prev so updates always advance.
func bumpedAt(prev, now time.Time) time.Time {
	if next := prev.Add(time.Millisecond); now.Before(next) {
		return next.UTC()
	}
	return now
}

func (r *ProjectRepo) DeleteOwned(ctx context.Context, id, ownerID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&project.ProjectModel{}).Select("id").Where("id = ? AND owner_id = ?", id, ownerID)
		if err := tx.Where("project_id IN (?)", owned).Delete(&project.CollaboratorModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&project.ProjectModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *ProjectRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&project.ProjectModel{}).Count(&n).Error
	return n, err
}

func (r *ProjectRepo) CountVisible(ctx context.Context, uid string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&project.ProjectModel{}).Where(visibleSQL, uid, uid).Count(&n).Error
	return n, err
}

func (r *ProjectRepo) GroupVisible(ctx context.Context, uid string, field domain.GroupField) ([]domain.GroupCount, error) {
	col, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		GroupKey string
		Total    int64
	}
	err = r.db.WithContext(ctx).Model(&project.ProjectModel{}).
		Select(col+" AS group_key, COUNT(*) AS total").
		Where(visibleSQL, uid, uid).
		Group(col).
		Order("total DESC").
		Order("group_key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.GroupCount{Key: row.GroupKey, Count: row.Total})
	}
	return out, nil
}

var errUnknownGroup = errors.New("unknown group field")

func groupColumn(f domain.GroupField) (string, error) {
	switch f {
	case domain.GroupByStatus:
		return "status", nil
	case domain.GroupByTechnology:
		return "technology", nil
	}
	return "", fmt.Errorf("%w: %q", errUnknownGroup, f)
}
