package mngmt

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/mail"
	"gatekeeper/internal/store"
	"gatekeeper/pkg/utils"
)

func CreateAllowEntry(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	st := c.Locals("store").(store.IdentityStore)

	type EntryInput struct {
		Email string `json:"email" validate:"required,email"`
		Role  string `json:"role" validate:"required,oneof=admin staff"`
		Name  string `json:"name"`
	}

	var input EntryInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	email := utils.NormalizeEmail(input.Email)

	if _, err := st.AllowEntryByKey(c.Context(), email); err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Entry already exists"})
	} else if !errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	entry := &database.AllowListEntry{
		Key:       email,
		Email:     email,
		Role:      input.Role,
		Name:      input.Name,
		CreatedAt: time.Now(),
	}

	if err := st.PutAllowEntry(c.Context(), entry); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	if cfg.MailFrom != "" {
		mailer := c.Locals("mailer").(mail.Mailer)
		invite := mail.Email{
			Subject: "You have been granted access",
			Body:    fmt.Sprintf("An administrator added %s to the application. Sign in with this address to activate your account.", email),
			From:    cfg.MailFrom,
			To:      []string{email},
		}
		if err := mailer.SendMail(&invite); err != nil {
			log.Errorf("invite mail: %v", err)
		}
	}

	return c.JSON(entry)
}

func GetAllowEntries(c *fiber.Ctx) error {
	st := c.Locals("store").(store.IdentityStore)

	entries, err := st.AllowEntries(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.JSON(entries)
}

func DeleteAllowEntry(c *fiber.Ctx) error {
	st := c.Locals("store").(store.IdentityStore)

	email := utils.NormalizeEmail(c.Params("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Email is required"})
	}

	if err := st.DeleteAllowEntry(c.Context(), email); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
