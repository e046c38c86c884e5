package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// HandleAdminMonitoringEvents lists recent audit events, newest first.
// Query params: hours (window, default 24), type (event type filter),
// limit (default 100).
func HandleAdminMonitoringEvents(c *fiber.Ctx) error {
	hours, _ := strconv.Atoi(c.Query("hours", "24"))
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	eventType := strings.TrimSpace(c.Query("type"))

	events, err := newMonitoringService().RecentEvents(hours, eventType, limit)
	if err != nil {
		log.Error().Err(err).Msg("could not list audit events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not list audit events"})
	}

	return c.JSON(fiber.Map{
		"events":       events,
		"count":        len(events),
		"window_hours": hours,
	})
}

// HandleAdminMonitoringStats aggregates the audit log over the requested
// window and evaluates alert conditions.
func HandleAdminMonitoringStats(c *fiber.Ctx) error {
	hours, _ := strconv.Atoi(c.Query("hours", "24"))

	stats, err := newMonitoringService().Stats(hours)
	if err != nil {
		log.Error().Err(err).Msg("could not aggregate audit events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "could not aggregate audit events"})
	}

	return c.JSON(stats)
}
