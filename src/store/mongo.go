package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/theleywin/posts-api/src/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	postsCollection    = "posts"
	profilesCollection = "profiles"
)

type MongoStore struct {
	client   *mongo.Client
	posts    *mongo.Collection
	profiles *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

type postDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Text   string             `bson:"text"`
	Name   string             `bson:"name,omitempty"`
	Avatar string             `bson:"avatar,omitempty"`
	User   string             `bson:"user"`
	Likes  []models.Like      `bson:"likes"`
	Date   time.Time          `bson:"date"`
}

func (d postDocument) toModel() models.Post {
	likes := d.Likes
	if likes == nil {
		likes = []models.Like{}
	}
	return models.Post{
		ID:     d.ID.Hex(),
		Text:   d.Text,
		Name:   d.Name,
		Avatar: d.Avatar,
		User:   d.User,
		Likes:  likes,
		Date:   d.Date.UTC(),
	}
}

// NewMongoStore connects to uri and ensures the indexes used by the posts API.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo failed")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging mongo failed")
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		posts:    db.Collection(postsCollection),
		profiles: db.Collection(profilesCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.posts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}},
	})
	if err != nil {
		return errors.Wrap(err, "creating posts date index failed")
	}

	_, err = s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "creating profiles user index failed")
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "listing posts failed")
	}
	defer cursor.Close(ctx)

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding posts failed")
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.toModel())
	}
	return posts, nil
}

func (s *MongoStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	objectID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDocument
	err = s.posts.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding post failed, id=%q", id)
	}

	post := doc.toModel()
	return &post, nil
}

// newPostDocument truncates the date to the millisecond precision of BSON
// dates so the created post matches what a later read returns.
func newPostDocument(post *models.Post) postDocument {
	return postDocument{
		ID:     primitive.NewObjectID(),
		Text:   post.Text,
		Name:   post.Name,
		Avatar: post.Avatar,
		User:   post.User,
		Likes:  []models.Like{},
		Date:   post.Date.Truncate(time.Millisecond),
	}
}

func (s *MongoStore) CreatePost(ctx context.Context, post *models.Post) error {
	doc := newPostDocument(post)
	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "inserting post failed")
	}

	*post = doc.toModel()
	return nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	objectID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	result, err := s.posts.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return errors.Wrapf(err, "deleting post failed, id=%q", id)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AddLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	objectID, err := parseObjectID(postID)
	if err != nil {
		return nil, err
	}
	filter, update := addLikeUpdate(objectID, userID)
	return s.updateLikes(ctx, objectID, filter, update, ErrAlreadyLiked)
}

func (s *MongoStore) RemoveLike(ctx context.Context, postID, userID string) (*models.Post, error) {
	objectID, err := parseObjectID(postID)
	if err != nil {
		return nil, err
	}
	filter, update := removeLikeUpdate(objectID, userID)
	return s.updateLikes(ctx, objectID, filter, update, ErrNotLiked)
}

// updateLikes applies a conditional update; when nothing matched it tells a
// missing post apart from a like that was already in the requested state.
func (s *MongoStore) updateLikes(ctx context.Context, id primitive.ObjectID, filter, update bson.M, conflict error) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDocument
	err := s.posts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		post := doc.toModel()
		return &post, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(err, "updating likes failed, id=%q", id.Hex())
	}

	count, err := s.posts.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, errors.Wrapf(err, "checking post failed, id=%q", id.Hex())
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return nil, conflict
}

func (s *MongoStore) FindProfileByUser(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.profiles.FindOne(ctx, bson.M{"user": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding profile failed, user=%q", userID)
	}
	return &profile, nil
}

func (s *MongoStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	_, err := s.profiles.UpdateOne(ctx,
		bson.M{"user": profile.User},
		bson.M{"$set": bson.M{"handle": profile.Handle}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrapf(err, "upserting profile failed, user=%q", profile.User)
	}
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return objectID, nil
}

// addLikeUpdate only matches the post while userID has no like, then pushes it to the front.
func addLikeUpdate(id primitive.ObjectID, userID string) (bson.M, bson.M) {
	filter := bson.M{
		"_id":        id,
		"likes.user": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{
			"likes": bson.M{
				"$each":     []models.Like{{User: userID}},
				"$position": 0,
			},
		},
	}
	return filter, update
}

func removeLikeUpdate(id primitive.ObjectID, userID string) (bson.M, bson.M) {
	filter := bson.M{
		"_id":        id,
		"likes.user": userID,
	}
	update := bson.M{
		"$pull": bson.M{"likes": bson.M{"user": userID}},
	}
	return filter, update
}
