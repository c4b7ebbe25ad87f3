package handlers

import (
	"github.com/gofiber/fiber/v2"

	"gatekeeper/internal/database"
)

func GetCurrentUser(c *fiber.Ctx) error {
	// API-key sessions carry no activity record.
	record, ok := c.Locals("record").(database.ActivityRecord)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "No activity record for this session",
		})
	}

	return c.JSON(record)
}
