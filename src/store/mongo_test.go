package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/theleywin/posts-api/src/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseObjectID(t *testing.T) {
	id := primitive.NewObjectID()

	got, err := parseObjectID(id.Hex())
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = parseObjectID("123")
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestAddLikeUpdateGuardsDuplicates(t *testing.T) {
	id := primitive.NewObjectID()
	filter, update := addLikeUpdate(id, "u1")

	require.Equal(t, bson.M{"_id": id, "likes.user": bson.M{"$ne": "u1"}}, filter)

	push := update["$push"].(bson.M)["likes"].(bson.M)
	require.Equal(t, 0, push["$position"])
	require.Equal(t, []models.Like{{User: "u1"}}, push["$each"])
}

func TestRemoveLikeUpdateRequiresExistingLike(t *testing.T) {
	id := primitive.NewObjectID()
	filter, update := removeLikeUpdate(id, "u1")

	require.Equal(t, bson.M{"_id": id, "likes.user": "u1"}, filter)
	require.Equal(t, bson.M{"$pull": bson.M{"likes": bson.M{"user": "u1"}}}, update)
}

func TestPostDocumentToModel(t *testing.T) {
	id := primitive.NewObjectID()
	date := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	post := postDocument{ID: id, Text: "hello", User: "u1", Date: date}.toModel()

	require.Equal(t, id.Hex(), post.ID)
	require.NotNil(t, post.Likes)
	require.Empty(t, post.Likes)
	require.Equal(t, time.UTC, post.Date.Location())
	require.True(t, date.Equal(post.Date))
}

func TestPostDocumentBSONShape(t *testing.T) {
	doc := postDocument{
		ID:    primitive.NewObjectID(),
		Text:  "hello",
		User:  "u1",
		Likes: []models.Like{{User: "u2"}},
		Date:  time.Now().UTC(),
	}

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded bson.M
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	require.Equal(t, "hello", decoded["text"])
	require.Equal(t, "u1", decoded["user"])
	require.NotContains(t, decoded, "name")
	likes, ok := decoded["likes"].(bson.A)
	require.True(t, ok)
	require.Len(t, likes, 1)
}

func TestNewPostDocumentDateSurvivesRoundTrip(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	doc := newPostDocument(&models.Post{Text: "hello", User: "u1", Date: date})

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var stored postDocument
	require.NoError(t, bson.Unmarshal(raw, &stored))

	created, found := doc.toModel(), stored.toModel()
	require.True(t, created.Date.Equal(found.Date), "created %s, stored %s", created.Date, found.Date)
	require.True(t, date.Truncate(time.Millisecond).Equal(created.Date))
	require.Equal(t, doc.ID.Hex(), found.ID)
}
