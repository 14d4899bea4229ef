package api

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Use(handler.metrics.middleware)

	app.Get("/healthz", handler.Health)
	app.Get("/metrics", handler.metrics.handler())

	auth := app.Group("/auth/v1", handler.RequireAPIKey)
	auth.Post("/signup", handler.SignUp)
	auth.Post("/token", handler.Token)
	auth.Post("/recover", handler.Recover)
	auth.Post("/verify", handler.Verify)
	auth.Post("/logout", handler.AuthRequired, handler.Logout)
	auth.Get("/user", handler.AuthRequired, handler.GetUser)
	auth.Put("/user", handler.AuthRequired, handler.UpdateUser)

	rest := app.Group("/rest/v1", handler.RequireAPIKey, handler.AuthRequired)
	rest.Get("/:table", handler.ListRows)
	rest.Post("/:table", handler.InsertRows)
	rest.Delete("/:table", handler.DeleteRows)

	app.Use(handler.NotFound)
}

func (handler *Handler) Health(c *fiber.Ctx) error {
	sqlDB, err := handler.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.UserContext())
	}
	if err != nil {
		handler.logger.Error("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (handler *Handler) NotFound(c *fiber.Ctx) error {
	return apiError(c, fiber.StatusNotFound, "not_found", "no route for "+c.Method()+" "+c.Path())
}
