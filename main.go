package main

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/app/repository"
	"github.com/arclightai/arclight-admin/internal/pkg/cache"
	"github.com/arclightai/arclight-admin/internal/pkg/database"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
	"github.com/arclightai/arclight-admin/internal/pkg/magiclink"
	"github.com/arclightai/arclight-admin/internal/pkg/router"
)

func main() {
	app := NewApplication()
	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "8000"))
	log.Info().Str("addr", addr).Msg("starting server")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	setupLogging()

	if err := env.ValidateCoreConfig(); err != nil {
		log.Fatal().Err(err).Msg("refusing to start with incomplete configuration")
	}
	// Surface weak hand-off token settings at boot instead of on first use.
	magiclink.NewServiceFromEnv()

	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		// Webhook payloads are small JSON documents
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

func setupLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(env.GetEnv("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
