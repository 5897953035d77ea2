package store

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/theleywin/posts-api/src/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type postRecord struct {
	ID     string       `gorm:"primaryKey"`
	Text   string       `gorm:"type:text;not null"`
	Name   string       `gorm:"type:text"`
	Avatar string       `gorm:"type:text"`
	User   string       `gorm:"index;not null"`
	Date   time.Time    `gorm:"index"`
	Likes  []likeRecord `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (postRecord) TableName() string { return "posts" }

// likeRecord ids grow with insertion, so ordering by id desc gives newest likes first.
type likeRecord struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	PostID string `gorm:"not null;uniqueIndex:idx_likes_post_user"`
	UserID string `gorm:"not null;uniqueIndex:idx_likes_post_user"`
}

func (likeRecord) TableName() string { return "likes" }

type profileRecord struct {
	User   string `gorm:"primaryKey"`
	Handle string
}

func (profileRecord) TableName() string { return "profiles" }

func (r postRecord) toModel() models.Post {
	likes := make([]models.Like, 0, len(r.Likes))
	for _, like := range r.Likes {
		likes = append(likes, models.Like{User: like.UserID})
	}
	return models.Post{
		ID:     r.ID,
		Text:   r.Text,
		Name:   r.Name,
		Avatar: r.Avatar,
		User:   r.User,
		Likes:  likes,
		Date:   r.Date.UTC(),
	}
}

type SQLiteStore struct {
	DB *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database file at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite failed, path=%q", path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting sqlite handle failed")
	}
	// SQLite allows a single writer; one connection keeps transactions from
	// failing with "database is locked" under concurrent requests.
	sqlDB.SetMaxOpenConns(1)

	s := &SQLiteStore{DB: db}
	if err := s.AutoMigrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Println("Connected to SQLite!")
	return s, nil
}

// AutoMigrate runs all database migrations
func (s *SQLiteStore) AutoMigrate() error {
	err := s.DB.AutoMigrate(
		&postRecord{},
		&likeRecord{},
		&profileRecord{},
	)
	if err != nil {
		return errors.Wrap(err, "migrating sqlite failed")
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func preloadLikes(db *gorm.DB) *gorm.DB {
	return db.Preload("Likes", func(db *gorm.DB) *gorm.DB {
		return db.Order("likes.id DESC")
	})
}

func (s *SQLiteStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	var records []postRecord
	err := preloadLikes(s.DB.WithContext(ctx)).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing posts failed")
	}

	posts := make([]models.Post, 0, len(records))
	for _, record := range records {
		posts = append(posts, record.toModel())
	}
	return posts, nil
}

func (s *SQLiteStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	return findPostRecord(s.DB.WithContext(ctx), id)
}

func findPostRecord(db *gorm.DB, id string) (*models.Post, error) {
	var record postRecord
	err := preloadLikes(db).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding post failed, id=%q", id)
	}

	post := record.toModel()
	return &post, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, post *models.Post) error {
	record := postRecord{
		ID:     uuid.NewString(),
		Text:   post.Text,
		Name:   post.Name,
		Avatar: post.Avatar,
		User:   post.User,
		Date:   post.Date,
	}

	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(&record).Error; err != nil {
		return errors.Wrap(err, "inserting post failed")
	}

	*post = record.toModel()
	return nil
}

func (s *SQLiteStore) DeletePost(ctx context.Context, id string) error {
	if err := checkUUID(id); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&likeRecord{}).Error; err != nil {
			return errors.Wrapf(err, "deleting likes failed, id=%q", id)
		}

		result := tx.Delete(&postRecord{}, "id = ?", id)
		if result.Error != nil {
			return errors.Wrapf(result.Error, "deleting post failed, id=%q", id)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) AddLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := checkUUID(postID); err != nil {
		return nil, err
	}

	var post *models.Post
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}

		// The unique (post_id, user_id) index turns a second like into a no-op insert.
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&likeRecord{PostID: postID, UserID: userID})
		if result.Error != nil {
			return errors.Wrapf(result.Error, "inserting like failed, id=%q", postID)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyLiked
		}

		var err error
		post, err = findPostRecord(tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *SQLiteStore) RemoveLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	if err := checkUUID(postID); err != nil {
		return nil, err
	}

	var post *models.Post
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, postID); err != nil {
			return err
		}

		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&likeRecord{})
		if result.Error != nil {
			return errors.Wrapf(result.Error, "deleting like failed, id=%q", postID)
		}
		if result.RowsAffected == 0 {
			return ErrNotLiked
		}

		var err error
		post, err = findPostRecord(tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func requirePost(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&postRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "checking post failed, id=%q", id)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	var record profileRecord
	err := s.DB.WithContext(ctx).First(&record, "user = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding profile failed, user=%q", userID)
	}
	return &models.Profile{User: record.User, Handle: record.Handle}, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	record := profileRecord{User: profile.User, Handle: profile.Handle}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle"}),
	}).Create(&record).Error
	if err != nil {
		return errors.Wrapf(err, "upserting profile failed, user=%q", profile.User)
	}
	return nil
}

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
