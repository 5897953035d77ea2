// Package store persists posts and reads profiles for the posts API.
//
// Three drivers implement Store: MongoStore (the document store the API was
// designed around), SQLiteStore for local runs and tests, and PostgresStore.
// Like and unlike are single atomic operations in every driver so concurrent
// requests on the same post cannot overwrite each other's likes.
package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/theleywin/posts-api/src/models"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidID    = errors.New("store: invalid id")
	ErrAlreadyLiked = errors.New("store: already liked")
	ErrNotLiked     = errors.New("store: not liked")
)

type PostStore interface {
	// ListPosts returns every post, newest date first.
	ListPosts(ctx context.Context) ([]models.Post, error)
	FindPost(ctx context.Context, id string) (*models.Post, error)
	// CreatePost assigns post.ID and persists the post.
	CreatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	// AddLike puts userID at the front of the likes unless it is already present.
	AddLike(ctx context.Context, postID, userID string) (*models.Post, error)
	// RemoveLike drops the like of userID, keeping the order of the others.
	RemoveLike(ctx context.Context, postID, userID string) (*models.Post, error)
}

type ProfileStore interface {
	FindProfileByUser(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

type Store interface {
	PostStore
	ProfileStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsNotFound reports whether err means the document does not exist or its id can never match.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID)
}
