package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/store"
)

type staticProvider struct {
	ident identity.Identity
	err   error
}

func (p *staticProvider) Verify(ctx context.Context, rawToken string) (identity.Identity, error) {
	return p.ident, p.err
}

func (p *staticProvider) SignOut(ctx context.Context, subjectID string) error {
	return nil
}

func newUserApp(t *testing.T, cfg *config.Config, st store.IdentityStore, provider identity.Provider) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("provider", provider)
		return c.Next()
	})
	app.Get("/api/user/me", middleware.AuthMiddleware, GetCurrentUser)

	return app
}

func TestGetCurrentUserWithAPIKeySession(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{APIKeyHash: string(hash)}
	st := store.NewMemoryStore()
	provider := &staticProvider{err: errors.New("no token expected")}
	app := newUserApp(t, cfg, st, provider)

	req := httptest.NewRequest(fiber.MethodGet, "/api/user/me", nil)
	req.Header.Set(middleware.HeaderXAPIKey, "secret")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("status = %d; want 404 for a key-authenticated session with no activity record", resp.StatusCode)
	}
}

func TestGetCurrentUserWithBearerToken(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.PutActivity(ctx, &database.ActivityRecord{
		ID: "u1", Email: "a@b.com", Role: database.RoleStaff,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	provider := &staticProvider{ident: identity.Identity{SubjectID: "u1", Email: "a@b.com"}}
	app := newUserApp(t, cfg, st, provider)

	req := httptest.NewRequest(fiber.MethodGet, "/api/user/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer sometoken")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var record database.ActivityRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatal(err)
	}
	if record.ID != "u1" || record.Email != "a@b.com" {
		t.Errorf("record = %+v; want u1 a@b.com", record)
	}
}
