package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/s3/v2"

	"gatekeeper/internal/platform/roster"
	"gatekeeper/internal/store"
	"gatekeeper/pkg/utils"
)

type RosterRow struct {
	roster.MergedUserView
	LastActiveRelative string `json:"last_active_relative"`
}

// GetRoster returns the live merged roster. The server keeps one roster
// view subscribed to both collections; requests only read its snapshot.
func GetRoster(c *fiber.Ctx) error {
	view := c.Locals("roster").(*roster.View)

	now := time.Now()
	snapshot := view.Snapshot()

	rows := make([]RosterRow, 0, len(snapshot))
	for _, merged := range snapshot {
		rows = append(rows, RosterRow{
			MergedUserView:     merged,
			LastActiveRelative: utils.FormatLastActive(merged.LastActive, now),
		})
	}

	return c.JSON(rows)
}

// RemoveUser deletes the allow-list entry and all activity records for an
// email. Partial failure returns the per-step report alongside the error;
// completed steps are not rolled back.
func RemoveUser(c *fiber.Ctx) error {
	st := c.Locals("store").(store.IdentityStore)

	type RemoveInput struct {
		UserIDs []string `json:"user_ids"`
	}

	var input RemoveInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid input"})
		}
	}

	email := c.Params("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Email is required"})
	}

	report, err := roster.RemoveCompletely(c.Context(), st, email, input.UserIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": err.Error(),
			"report":  report,
		})
	}

	return c.JSON(report)
}

// ExportRoster writes a timestamped JSON snapshot of the merged roster to
// the configured S3 bucket.
func ExportRoster(c *fiber.Ctx) error {
	view := c.Locals("roster").(*roster.View)
	storage := c.Locals("storage").(*s3.Storage)

	snapshot := view.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}

	key := fmt.Sprintf("roster/%s.json", time.Now().UTC().Format("20060102T150405Z"))
	if err := storage.Set(key, data, 0); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "Snapshot upload failed"})
	}

	return c.JSON(fiber.Map{"key": key, "users": len(snapshot)})
}
