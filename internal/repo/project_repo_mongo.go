package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"project-tracker/internal/domain"
	"project-tracker/internal/feature/project"
)

var errInvalidStatus = errors.New("invalid project status")

type projectDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Description   string    `bson:"description"`
	Technology    string    `bson:"technology"`
	Status        string    `bson:"status"`
	Owner         string    `bson:"owner"`
	Collaborators []string  `bson:"collaborators"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func (d *projectDoc) toDomain() domain.Project {
	collab := d.Collaborators
	if collab == nil {
		collab = []string{}
	}
	return domain.Project{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		Technology:      d.Technology,
		Status:          domain.Status(d.Status),
		OwnerID:         d.Owner,
		CollaboratorIDs: collab,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func visibleFilter(uid string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"owner": uid},
		bson.M{"collaborators": uid},
	}}
}

type MongoProjectRepo struct{ c *mongo.Collection }

func NewMongoProjectRepo(db *mongo.Database) *MongoProjectRepo {
	return &MongoProjectRepo{c: db.Collection(projectsCollection)}
}

func (r *MongoProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	if !p.Status.Valid() {
		return fmt.Errorf("%w: %q", errInvalidStatus, p.Status)
	}
	_, err := r.c.InsertOne(ctx, projectDoc{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Technology:    p.Technology,
		Status:        string(p.Status),
		Owner:         p.OwnerID,
		Collaborators: project.Dedupe(p.CollaboratorIDs),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
	return err
}

func (r *MongoProjectRepo) ListVisible(ctx context.Context, uid string) ([]domain.Project, error) {
	cur, err := r.c.Find(ctx, visibleFilter(uid), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []projectDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *MongoProjectRepo) UpdateAccessible(ctx context.Context, id, uid string, patch domain.ProjectPatch, now time.Time) (*domain.Project, error) {
	// Pipeline form so updated_at can be computed from the stored value.
	// User-supplied values go through $literal so a leading "$" is not
	// read as a field path.
	set := bson.M{
		"updated_at": bson.M{"$max": bson.A{now, bson.M{"$add": bson.A{"$updated_at", 1}}}},
	}
	lit := func(v any) bson.M { return bson.M{"$literal": v} }
	if patch.Name != nil {
		set["name"] = lit(*patch.Name)
	}
	if patch.Description != nil {
		set["description"] = lit(*patch.Description)
	}
	if patch.Technology != nil {
		set["technology"] = lit(*patch.Technology)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", errInvalidStatus, *patch.Status)
		}
		set["status"] = lit(string(*patch.Status))
	}
	if patch.Collaborators != nil {
		set["collaborators"] = lit(project.Dedupe(*patch.Collaborators))
	}

	filter := visibleFilter(uid)
	filter["_id"] = id

	var d projectDoc
	err := r.c.FindOneAndUpdate(ctx, filter, mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := d.toDomain()
	return &p, nil
}

func (r *MongoProjectRepo) DeleteOwned(ctx context.Context, id, ownerID string) (bool, error) {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id, "owner": ownerID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoProjectRepo) Count(ctx context.Context) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{})
}

func (r *MongoProjectRepo) CountVisible(ctx context.Context, uid string) (int64, error) {
	return r.c.CountDocuments(ctx, visibleFilter(uid))
}

func (r *MongoProjectRepo) GroupVisible(ctx context.Context, uid string, field domain.GroupField) ([]domain.GroupCount, error) {
	col, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: visibleFilter(uid)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + col},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.GroupCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.GroupCount{Key: row.Key, Count: row.Count})
	}
	return out, nil
}
