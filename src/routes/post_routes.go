package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/posts-api/src/controllers"
)

// PostRoutes mounts the post routes under prefix; protect guards every route that needs a caller identity
func PostRoutes(app *fiber.App, prefix string, pc *controllers.PostController, protect fiber.Handler) {
	post := app.Group(prefix)

	// /test must be registered before /:id
	post.Get("/test", pc.Test)
	post.Get("/", pc.GetPosts)
	post.Get("/:id", pc.GetPostByID)
	post.Post("/", protect, pc.CreatePost)
	post.Delete("/:id", protect, pc.DeletePost)
	post.Post("/like/:id", protect, pc.LikePost)
	post.Post("/unlike/:id", protect, pc.UnlikePost)
}

// HealthRoutes exposes the liveness probe outside the API prefix
func HealthRoutes(app *fiber.App, pc *controllers.PostController) {
	app.Get("/healthz", pc.Health)
}
