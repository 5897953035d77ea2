package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/theleywin/posts-api/src/lib"
	"github.com/theleywin/posts-api/src/middleware"
	"github.com/theleywin/posts-api/src/models"
	"github.com/theleywin/posts-api/src/store"
)

// PostController serves the post routes. It keeps no per-request state.
type PostController struct {
	Store     store.Store
	Validator lib.PostValidator
	Clock     lib.Clock
	Timeout   time.Duration

	// LegacyNullPost answers GET /:id for a missing post with 200 and a null body.
	LegacyNullPost   bool
	// LegacyOwnerCheck compares the caller's profile owner with the caller
	// instead of the post owner, which lets any user with a profile delete any post.
	LegacyOwnerCheck bool
}

// NewPostController wires a controller from the service configuration
func NewPostController(s store.Store, cfg lib.Config) *PostController {
	return &PostController{
		Store:            s,
		Validator:        cfg.PostRules(),
		Clock:            lib.NewRealClock(),
		Timeout:          cfg.StoreTimeout,
		LegacyNullPost:   cfg.LegacyNullPost,
		LegacyOwnerCheck: cfg.LegacyOwnerCheck,
	}
}

func (pc *PostController) storeContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if pc.Timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), pc.Timeout)
}

// Test acknowledges that the post routes are mounted
func (pc *PostController) Test(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"msg": "Posts works",
	})
}

// GetPosts returns every post, newest first
func (pc *PostController) GetPosts(c *fiber.Ctx) error {
	ctx, cancel := pc.storeContext(c)
	defer cancel()

	posts, err := pc.Store.ListPosts(ctx)
	if err != nil {
		log.Printf("Error listing posts: %v", err)
		return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("nopostsfound", "No posts found"))
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

// GetPostByID returns a single post
func (pc *PostController) GetPostByID(c *fiber.Ctx) error {
	ctx, cancel := pc.storeContext(c)
	defer cancel()

	post, err := pc.Store.FindPost(ctx, c.Params("id"))
	if err != nil {
		if pc.LegacyNullPost && errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusOK).JSON(nil)
		}
		if !store.IsNotFound(err) {
			log.Printf("Error fetching post %s: %v", c.Params("id"), err)
		}
		return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("nopostfound", "No post found with that ID"))
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// CreatePost validates the body and stores a new post owned by the caller
func (pc *PostController) CreatePost(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized"))
	}

	var input models.PostInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(lib.KeyedResponse("body", "Invalid request body"))
	}

	if errs, isValid := pc.Validator.Validate(input); !isValid {
		return c.Status(fiber.StatusBadRequest).JSON(errs)
	}

	newPost := models.Post{
		Text:   input.Text,
		Name:   input.Name,
		Avatar: input.Avatar,
		User:   user.ID,
		Likes:  []models.Like{},
		Date:   pc.Clock.NowUtc(),
	}

	ctx, cancel := pc.storeContext(c)
	defer cancel()

	if err := pc.Store.CreatePost(ctx, &newPost); err != nil {
		log.Printf("Error creating post: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(newPost)
}

// DeletePost removes a post owned by the caller
func (pc *PostController) DeletePost(c *fiber.Ctx) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized"))
	}

	ctx, cancel := pc.storeContext(c)
	defer cancel()

	profile, err := pc.Store.FindProfileByUser(ctx, user.ID)
	if err != nil {
		return profileError(c, err)
	}

	postID := c.Params("id")
	post, err := pc.Store.FindPost(ctx, postID)
	if err != nil {
		return postLookupError(c, postID, err)
	}

	owner := post.User
	if pc.LegacyOwnerCheck {
		owner = profile.User
	}
	if owner != user.ID {
		return c.Status(fiber.StatusUnauthorized).JSON(lib.KeyedResponse("notauthorized", "User not authorized"))
	}

	if err := pc.Store.DeletePost(ctx, postID); err != nil {
		if store.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("postnotfound", "No post found"))
		}
		log.Printf("Error deleting post %s: %v", postID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
	})
}

// LikePost adds the caller to the front of the post's likes
func (pc *PostController) LikePost(c *fiber.Ctx) error {
	return pc.updateLikes(c, true)
}

// UnlikePost removes the caller's like from the post
func (pc *PostController) UnlikePost(c *fiber.Ctx) error {
	return pc.updateLikes(c, false)
}

func (pc *PostController) updateLikes(c *fiber.Ctx, like bool) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized"))
	}

	ctx, cancel := pc.storeContext(c)
	defer cancel()

	if _, err := pc.Store.FindProfileByUser(ctx, user.ID); err != nil {
		return profileError(c, err)
	}

	postID := c.Params("id")
	post, err := pc.Store.FindPost(ctx, postID)
	if err != nil {
		return postLookupError(c, postID, err)
	}

	var updated *models.Post
	if like {
		if post.LikedBy(user.ID) {
			return likeStateError(c, store.ErrAlreadyLiked)
		}
		updated, err = pc.Store.AddLike(ctx, postID, user.ID)
	} else {
		if !post.LikedBy(user.ID) {
			return likeStateError(c, store.ErrNotLiked)
		}
		updated, err = pc.Store.RemoveLike(ctx, postID, user.ID)
	}

	// The store re-checks atomically; a concurrent request may have won the race.
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyLiked), errors.Is(err, store.ErrNotLiked):
			return likeStateError(c, err)
		case store.IsNotFound(err):
			return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("postnotfound", "No post found"))
		default:
			log.Printf("Error updating likes of post %s: %v", postID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update post",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(updated)
}

// Health reports whether the store answers
func (pc *PostController) Health(c *fiber.Ctx) error {
	ctx, cancel := pc.storeContext(c)
	defer cancel()

	if err := pc.Store.Ping(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}

func profileError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("noprofile", "There is no profile for this user"))
	}
	log.Printf("Error fetching profile: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to fetch profile",
	})
}

func postLookupError(c *fiber.Ctx, postID string, err error) error {
	if !store.IsNotFound(err) {
		log.Printf("Error fetching post %s: %v", postID, err)
	}
	return c.Status(fiber.StatusNotFound).JSON(lib.KeyedResponse("postnotfound", "No post found"))
}

func likeStateError(c *fiber.Ctx, err error) error {
	if errors.Is(err, store.ErrAlreadyLiked) {
		return c.Status(fiber.StatusBadRequest).JSON(lib.KeyedResponse("alreadyliked", "User already liked this post"))
	}
	return c.Status(fiber.StatusBadRequest).JSON(lib.KeyedResponse("notliked", "You have not liked this post"))
}
