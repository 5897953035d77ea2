package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"github.com/theleywin/posts-api/src/models"
	"github.com/theleywin/posts-api/src/store"
)

// storeHarness opens an empty store for one subtest and names an id that is
// well formed for the driver but belongs to no post.
type storeHarness struct {
	open      func(ctx context.Context, t *testing.T) store.Store
	missingID func() string
}

type storeCase struct {
	name string
	run  func(ctx context.Context, t *testing.T, s store.Store, h storeHarness)
}

var storeCases = []storeCase{
	{"CreateAndFindPost", testCreateAndFindPost},
	{"FindPostErrors", testFindPostErrors},
	{"ListPostsNewestFirst", testListPostsNewestFirst},
	{"LikesNewestFirstAndUnique", testLikesNewestFirstAndUnique},
	{"LikeMissingPost", testLikeMissingPost},
	{"ConcurrentLikesKeepOnePerUser", testConcurrentLikesKeepOnePerUser},
	{"ConcurrentUnlikesRemoveOnce", testConcurrentUnlikesRemoveOnce},
	{"DeletePost", testDeletePost},
	{"Profiles", testProfiles},
}

func runStoreCases(t *testing.T, h storeHarness) {
	for _, tc := range storeCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := getTestContext()
			defer cancel()
			tc.run(ctx, t, h.open(ctx, t), h)
		})
	}
}

func getTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func createPost(ctx context.Context, t *testing.T, s store.Store, userID string, date time.Time) models.Post {
	post := models.Post{
		Text:   gofakeit.Phrase(),
		Name:   gofakeit.Name(),
		Avatar: gofakeit.URL(),
		User:   userID,
		Date:   date,
	}
	require.NoError(t, s.CreatePost(ctx, &post))
	return post
}

func likeUsers(post *models.Post) []string {
	users := make([]string, 0, len(post.Likes))
	for _, like := range post.Likes {
		users = append(users, like.User)
	}
	return users
}

func testCreateAndFindPost(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	date := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	created := createPost(ctx, t, s, "u1", date)
	require.NotEmpty(t, created.ID)
	require.Empty(t, created.Likes)
	require.NotNil(t, created.Likes)
	require.WithinDuration(t, date, created.Date, time.Millisecond)

	found, err := s.FindPost(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, created.Text, found.Text)
	require.Equal(t, created.Name, found.Name)
	require.Equal(t, created.Avatar, found.Avatar)
	require.Equal(t, "u1", found.User)
	require.True(t, created.Date.Equal(found.Date), "created %s, found %s", created.Date, found.Date)
	require.Equal(t, time.UTC, found.Date.Location())
	require.NotNil(t, found.Likes)
	require.Empty(t, found.Likes)
}

func testFindPostErrors(ctx context.Context, t *testing.T, s store.Store, h storeHarness) {
	_, err := s.FindPost(ctx, "not-an-id")
	require.ErrorIs(t, err, store.ErrInvalidID)
	require.True(t, store.IsNotFound(err))

	_, err = s.FindPost(ctx, h.missingID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testListPostsNewestFirst(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	posts, err := s.ListPosts(ctx)
	require.NoError(t, err)
	require.NotNil(t, posts)
	require.Empty(t, posts)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	middle := createPost(ctx, t, s, "u1", base.Add(time.Hour))
	oldest := createPost(ctx, t, s, "u2", base)
	newest := createPost(ctx, t, s, "u1", base.Add(2*time.Hour))

	posts, err = s.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
}

func testLikesNewestFirstAndUnique(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	post := createPost(ctx, t, s, "author", time.Now())

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := s.AddLike(ctx, post.ID, user)
		require.NoError(t, err)
	}

	_, err := s.AddLike(ctx, post.ID, "u2")
	require.ErrorIs(t, err, store.ErrAlreadyLiked)

	found, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"u3", "u2", "u1"}, likeUsers(found))

	updated, err := s.RemoveLike(ctx, post.ID, "u2")
	require.NoError(t, err)
	require.Equal(t, []string{"u3", "u1"}, likeUsers(updated))

	_, err = s.RemoveLike(ctx, post.ID, "u2")
	require.ErrorIs(t, err, store.ErrNotLiked)

	updated, err = s.RemoveLike(ctx, post.ID, "u3")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, likeUsers(updated))

	updated, err = s.RemoveLike(ctx, post.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, updated.Likes)
	require.Empty(t, updated.Likes)
}

func testLikeMissingPost(ctx context.Context, t *testing.T, s store.Store, h storeHarness) {
	_, err := s.AddLike(ctx, h.missingID(), "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.RemoveLike(ctx, h.missingID(), "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.AddLike(ctx, "bogus", "u1")
	require.ErrorIs(t, err, store.ErrInvalidID)

	_, err = s.RemoveLike(ctx, "bogus", "u1")
	require.ErrorIs(t, err, store.ErrInvalidID)
}

func testConcurrentLikesKeepOnePerUser(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	post := createPost(ctx, t, s, "author", time.Now())

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AddLike(ctx, post.ID, "same-user")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, store.ErrAlreadyLiked)
	}
	require.Equal(t, 1, successes)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = s.AddLike(ctx, post.ID, user)
		}(i, gofakeit.UUID())
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	found, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, found.Likes, workers+1)
}

func testConcurrentUnlikesRemoveOnce(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	post := createPost(ctx, t, s, "author", time.Now())
	for _, user := range []string{"u1", "same-user", "u2"} {
		_, err := s.AddLike(ctx, post.ID, user)
		require.NoError(t, err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RemoveLike(ctx, post.ID, "same-user")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, store.ErrNotLiked)
	}
	require.Equal(t, 1, successes)

	found, err := s.FindPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"u2", "u1"}, likeUsers(found))
}

func testDeletePost(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	post := createPost(ctx, t, s, "u1", time.Now())
	_, err := s.AddLike(ctx, post.ID, "u2")
	require.NoError(t, err)

	require.NoError(t, s.DeletePost(ctx, post.ID))

	_, err = s.FindPost(ctx, post.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.AddLike(ctx, post.ID, "u3")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.DeletePost(ctx, post.ID), store.ErrNotFound)
	require.ErrorIs(t, s.DeletePost(ctx, "bogus"), store.ErrInvalidID)
}

func testProfiles(ctx context.Context, t *testing.T, s store.Store, _ storeHarness) {
	_, err := s.FindProfileByUser(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{User: "u1", Handle: "first"}))
	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{User: "u1", Handle: "second"}))

	profile, err := s.FindProfileByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.Profile{User: "u1", Handle: "second"}, *profile)

	require.NoError(t, s.Ping(ctx))
}
