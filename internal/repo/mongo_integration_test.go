package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"project-tracker/internal/core/database"
)

// newTestMongo connects to MONGO_URI and hands out a throwaway database.
func newTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewMongo(ctx, database.MongoOpts{
		URI:      uri,
		Database: "tracker_test_" + uuid.NewString()[:8],
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, EnsureMongoIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})
	return db
}

func TestMongoUserRepo(t *testing.T) {
	db := newTestMongo(t)
	runUserRepoSuite(t, repos{users: NewMongoUserRepo(db), projects: NewMongoProjectRepo(db)})
}

func TestMongoProjectRepo(t *testing.T) {
	db := newTestMongo(t)
	runProjectRepoSuite(t, repos{users: NewMongoUserRepo(db), projects: NewMongoProjectRepo(db)})
}
