package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/theleywin/posts-api/src/models"
)

// PostgresStore keeps likes as a JSONB array on the post row so that like and
// unlike stay single conditional UPDATE statements.
type PostgresStore struct {
	DBPool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id      UUID PRIMARY KEY,
		text    TEXT NOT NULL,
		name    TEXT NOT NULL DEFAULT '',
		avatar  TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		likes   JSONB NOT NULL DEFAULT '[]'::jsonb,
		date    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_date_idx ON posts (date DESC)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		handle  TEXT NOT NULL DEFAULT ''
	)`,
}

const postColumns = `id::text, text, name, avatar, user_id, likes, date`

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parsing postgres conn string failed")
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool failed")
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "creating postgres schema failed")
		}
	}

	return &PostgresStore{DBPool: pool}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.DBPool.Ping(ctx)
}

func (p *PostgresStore) Close(ctx context.Context) error {
	p.DBPool.Close()
	return nil
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var (
		post  models.Post
		likes []byte
		date  time.Time
	)
	if err := row.Scan(&post.ID, &post.Text, &post.Name, &post.Avatar, &post.User, &likes, &date); err != nil {
		return nil, err
	}

	post.Date = date.UTC()
	post.Likes = []models.Like{}
	if err := json.Unmarshal(likes, &post.Likes); err != nil {
		return nil, errors.Wrap(err, "decoding likes failed")
	}
	return &post, nil
}

func (p *PostgresStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := p.DBPool.Query(ctx, `SELECT `+postColumns+` FROM posts ORDER BY date DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "listing posts failed")
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning post failed")
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating posts failed")
	}
	return posts, nil
}

func (p *PostgresStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	postID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	post, err := scanPost(p.DBPool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding post failed, id=%q", id)
	}
	return post, nil
}

func (p *PostgresStore) CreatePost(ctx context.Context, post *models.Post) error {
	created, err := scanPost(p.DBPool.QueryRow(ctx, `
		INSERT INTO posts (id, text, name, avatar, user_id, likes, date)
		VALUES ($1, $2, $3, $4, $5, '[]'::jsonb, $6)
		RETURNING `+postColumns,
		uuid.NewString(), post.Text, post.Name, post.Avatar, post.User, post.Date))
	if err != nil {
		return errors.Wrap(err, "inserting post failed")
	}

	*post = *created
	return nil
}

func (p *PostgresStore) DeletePost(ctx context.Context, id string) error {
	postID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	tag, err := p.DBPool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID.String())
	if err != nil {
		return errors.Wrapf(err, "deleting post failed, id=%q", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) AddLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	return p.updateLikes(ctx, postID, userID, `
		UPDATE posts
		SET likes = jsonb_build_array(jsonb_build_object('user', $2::text)) || likes
		WHERE id = $1 AND NOT likes @> jsonb_build_array(jsonb_build_object('user', $2::text))
		RETURNING `+postColumns, ErrAlreadyLiked)
}

func (p *PostgresStore) RemoveLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	return p.updateLikes(ctx, postID, userID, `
		UPDATE posts
		SET likes = COALESCE((
			SELECT jsonb_agg(elem ORDER BY ord)
			FROM jsonb_array_elements(likes) WITH ORDINALITY AS t(elem, ord)
			WHERE elem->>'user' <> $2::text
		), '[]'::jsonb)
		WHERE id = $1 AND likes @> jsonb_build_array(jsonb_build_object('user', $2::text))
		RETURNING `+postColumns, ErrNotLiked)
}

func (p *PostgresStore) updateLikes(ctx context.Context, id, userID, query string, conflict error) (*models.Post, error) {
	postID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	post, err := scanPost(p.DBPool.QueryRow(ctx, query, postID.String(), userID))
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "updating likes failed, id=%q", id)
	}

	var exists bool
	err = p.DBPool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID.String()).Scan(&exists)
	if err != nil {
		return nil, errors.Wrapf(err, "checking post failed, id=%q", id)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, conflict
}

func (p *PostgresStore) FindProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := p.DBPool.QueryRow(ctx, `SELECT user_id, handle FROM profiles WHERE user_id = $1`, userID).
		Scan(&profile.User, &profile.Handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding profile failed, user=%q", userID)
	}
	return &profile, nil
}

func (p *PostgresStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	_, err := p.DBPool.Exec(ctx, `
		INSERT INTO profiles (user_id, handle) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET handle = EXCLUDED.handle
	`, profile.User, profile.Handle)
	if err != nil {
		return errors.Wrapf(err, "upserting profile failed, user=%q", profile.User)
	}
	return nil
}
