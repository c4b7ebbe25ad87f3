package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/store"
)

const (
	AuthProviderToken  = "id_token"
	AuthProviderAPIKey = "api_key"
)

const (
	HeaderXAPIKey = "X-API-Key"
)

// AuthMiddleware authenticates a request either with the management API
// key or with a provider ID token belonging to an already-activated
// identity. The activity record ends up in Locals; the role on it drives
// the admin gate.
func AuthMiddleware(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	st := c.Locals("store").(store.IdentityStore)
	provider := c.Locals("provider").(identity.Provider)

	xAPIKey := c.Get(HeaderXAPIKey)
	if xAPIKey != "" {
		if cfg.APIKeyHash == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(xAPIKey)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		c.Locals("auth_provider", AuthProviderAPIKey)
		c.Locals("role", database.RoleAdmin)

		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")

	ident, err := provider.Verify(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	record, err := st.ActivityByID(c.Context(), ident.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	c.Locals("auth_provider", AuthProviderToken)
	c.Locals("record", *record)
	c.Locals("role", record.Role)

	return c.Next()
}
