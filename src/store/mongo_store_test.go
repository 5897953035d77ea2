package store_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/theleywin/posts-api/src/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// newMongoStore opens a throwaway database on MONGO_URI and drops it when the test ends.
func newMongoStore(ctx context.Context, t *testing.T, uri string) *store.MongoStore {
	database := "posts_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := store.NewMongoStore(ctx, uri, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := getTestContext()
		defer cancel()
		_ = s.DropDatabase(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	runStoreCases(t, storeHarness{
		open: func(ctx context.Context, t *testing.T) store.Store {
			return newMongoStore(ctx, t, uri)
		},
		missingID: func() string { return primitive.NewObjectID().Hex() },
	})
}
