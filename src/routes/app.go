package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/theleywin/posts-api/src/controllers"
	"github.com/theleywin/posts-api/src/lib"
	"github.com/theleywin/posts-api/src/middleware"
)

// NewApp builds the Fiber application with middleware and every route registered
func NewApp(cfg lib.Config, pc *controllers.PostController) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "posts-api",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	HealthRoutes(app, pc)
	PostRoutes(app, cfg.MountPath, pc, middleware.ProtectRoute(cfg.JWTSecret))

	return app
}

// errorHandler keeps unmatched routes and recovered panics in the JSON shape of the API
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(code).JSON(lib.MessageResponse(message))
}
