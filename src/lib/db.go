package lib

import (
	"context"
	"fmt"
	"log"

	"github.com/theleywin/posts-api/src/store"
)

// ConnectDB opens the store selected by cfg.StoreDriver
func ConnectDB(ctx context.Context, cfg Config) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case DriverMongo:
		s, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to MongoDB! database=%s", cfg.MongoDatabase)
		return s, nil
	case DriverSQLite:
		return store.NewSQLiteStore(cfg.DBPath)
	case DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to PostgreSQL!")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
