package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/cache"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/database"
)

// HandleHealth reports process liveness plus database and cache
// reachability.
func HandleHealth(c *fiber.Ctx) error {
	status := fiber.StatusOK
	dbOK := true
	cacheOK := true

	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbOK = false
		}
	} else {
		dbOK = false
	}
	if client := cache.GetClient(); client != nil {
		if err := client.Ping(c.Context()).Err(); err != nil {
			cacheOK = false
		}
	} else {
		cacheOK = false
	}

	health := "ok"
	if !dbOK || !cacheOK {
		status = fiber.StatusServiceUnavailable
		health = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   health,
		"database": dbOK,
		"cache":    cacheOK,
	})
}
