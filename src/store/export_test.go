package store

import "context"

// DropDatabase removes the database behind s. Tests use it to clean up after themselves.
func (s *MongoStore) DropDatabase(ctx context.Context) error {
	return s.posts.Database().Drop(ctx)
}
