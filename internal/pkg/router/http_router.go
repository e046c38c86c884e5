package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arclightai/arclight-admin/internal/pkg/middleware"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Raw body capture must run before any handler can touch the request,
	// otherwise signature verification sees re-serialized bytes.
	app.Use(middleware.RawBodyMiddleware())

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
