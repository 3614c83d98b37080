package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/core/cache"
	"project-tracker/internal/domain"
)

// Stats numbers come from independent queries and may disagree slightly
// when projects are written concurrently.
type Stats struct {
	TotalUsers           int64               `json:"totalUsers"`
	TotalProjects        int64               `json:"totalProjects"`
	UserProjects         int64               `json:"userProjects"`
	ProjectsByStatus     []domain.GroupCount `json:"projectsByStatus"`
	ProjectsByTechnology []domain.GroupCount `json:"projectsByTechnology"`
}

type AnalyticsService struct {
	users    domain.UserRepository
	projects domain.ProjectRepository
	cache    *cache.Cache
	ttl      time.Duration
	log      *zap.Logger
}

func NewAnalyticsService(users domain.UserRepository, projects domain.ProjectRepository, log *zap.Logger) *AnalyticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsService{users: users, projects: projects, log: log}
}

// WithCache turns on per-user caching of the stats payload. A nil cache or
// non-positive ttl leaves it off.
func (s *AnalyticsService) WithCache(c *cache.Cache, ttl time.Duration) *AnalyticsService {
	if c != nil && ttl > 0 {
		s.cache, s.ttl = c, ttl
	}
	return s
}

func (s *AnalyticsService) Stats(ctx context.Context, userID string) (*Stats, error) {
	if s.cache == nil {
		return s.compute(ctx, userID)
	}
	st, err := cache.GetOrLoadJSON(s.cache, ctx, statsKey(userID), s.ttl, func(ctx context.Context) (*Stats, error) {
		return s.compute(ctx, userID)
	})
	var ae *apperr.Error
	if err != nil && !errors.As(err, &ae) {
		s.log.Warn("stats cache failed, computing directly", zap.String("user_id", userID), zap.Error(err))
		return s.compute(ctx, userID)
	}
	return st, err
}

// Invalidate drops the cached stats of userIDs. Global totals of other users
// still age out with the TTL.
func (s *AnalyticsService) Invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, statsKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("stats invalidate failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}

func statsKey(userID string) string { return "stats:" + userID }

func (s *AnalyticsService) compute(ctx context.Context, userID string) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, apperr.FromStore("count users", err)
	}
	if st.TotalProjects, err = s.projects.Count(ctx); err != nil {
		return nil, apperr.FromStore("count projects", err)
	}
	if st.UserProjects, err = s.projects.CountVisible(ctx, userID); err != nil {
		return nil, apperr.FromStore("count visible projects", err)
	}
	if st.ProjectsByStatus, err = s.projects.GroupVisible(ctx, userID, domain.GroupByStatus); err != nil {
		return nil, apperr.FromStore("group by status", err)
	}
	if st.ProjectsByTechnology, err = s.projects.GroupVisible(ctx, userID, domain.GroupByTechnology); err != nil {
		return nil, apperr.FromStore("group by technology", err)
	}
	return &st, nil
}
