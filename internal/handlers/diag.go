package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Diagnostics for debugging proxy and device-metadata capture: the access
// resolver records c.IP() and the user agent, so these must reflect what
// the resolver would see.
func GetIP(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ip":         c.IP(),
		"request_id": c.Locals(requestid.ConfigDefault.ContextKey),
	})
}

func GetHeaders(c *fiber.Ctx) error {
	return c.JSON(c.GetReqHeaders())
}
