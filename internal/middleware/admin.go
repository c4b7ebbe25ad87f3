package middleware

import (
	"github.com/gofiber/fiber/v2"

	"gatekeeper/internal/database"
)

func AdminMiddleware(c *fiber.Ctx) error {
	role, _ := c.Locals("role").(string)

	if role != database.RoleAdmin {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	return c.Next()
}
