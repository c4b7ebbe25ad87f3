package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"gatekeeper/internal/config"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/mail"
	"gatekeeper/internal/platform/access"
	"gatekeeper/internal/store"
)

// SigninCallback handles the identity-provider callback: verify the ID
// token, then authorize against the allow list and record the login. An
// identity that is not allow-listed has already been force-signed-out by
// the resolver; the response carries the contact-administrator message
// with the rejected email.
func SigninCallback(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	provider := c.Locals("provider").(identity.Provider)
	resolver := c.Locals("resolver").(*access.Resolver)

	type CallbackInput struct {
		IDToken  string `json:"id_token" validate:"required"`
		Platform string `json:"platform"`
	}

	var input CallbackInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	ident, err := provider.Verify(c.Context(), input.IDToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	}

	ident.Device = identity.DeviceInfo{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Platform:  input.Platform,
		IPAddress: c.IP(),
	}

	outcome, err := resolver.Authorize(c.Context(), ident)
	if err != nil {
		var rejection *access.UnauthorizedError
		switch {
		case errors.As(err, &rejection):
			notifyRejection(c, cfg, rejection.Email)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": fmt.Sprintf("%s is not authorized to use this application. Contact an administrator.", rejection.Email),
			})
		case errors.Is(err, access.ErrInvalidIdentity):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid identity"})
		case errors.Is(err, store.ErrPermissionDenied):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Store permission denied"})
		default:
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Service unavailable"})
		}
	}

	return c.JSON(outcome)
}

// notifyRejection mails the operations address about the rejected sign-in.
// Best effort: delivery failure never changes the response.
func notifyRejection(c *fiber.Ctx, cfg *config.Config, email string) {
	if cfg.AdminEmail == "" {
		return
	}
	mailer := c.Locals("mailer").(mail.Mailer)

	message := mail.Email{
		Subject: "Rejected sign-in attempt",
		Body:    fmt.Sprintf("%s tried to sign in but is not on the allow list.", email),
		From:    cfg.MailFrom,
		To:      []string{cfg.AdminEmail},
	}
	if err := mailer.SendMail(&message); err != nil {
		log.Errorf("rejection notice: %v", err)
	}
}
