package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/handlers"
	mngmt "gatekeeper/internal/handlers/management"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/mail"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/platform/access"
	"gatekeeper/internal/platform/roster"
	"gatekeeper/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var st store.IdentityStore
	if cfg.DatabaseURL == "memory" {
		st = store.NewMemoryStore()
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatal(err)
		}
		st = store.NewGormStore(db)
	}

	provider := identity.NewTokenProvider(cfg.TokenSecret, cfg.TokenIssuer, cfg.ProviderRevokeURL)
	resolver := access.NewResolver(st, provider)
	mailer := mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
	storage := cfg.Storage()

	// The server holds the single live roster subscription; request
	// handlers only read snapshots from it.
	rosterView, err := roster.NewView(st, database.RoleAdmin)
	if err != nil {
		log.Fatal(err)
	}
	defer rosterView.Close()

	go func() {
		if err := metrics.Serve(cfg.MetricsPort); err != nil {
			log.Fatal(err)
		}
	}()

	app := fiber.New()

	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(healthcheck.New())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("provider", provider)
		c.Locals("resolver", resolver)
		c.Locals("mailer", mail.Mailer(mailer))
		c.Locals("storage", storage)
		c.Locals("roster", rosterView)
		return c.Next()
	})

	api := app.Group("/api")

	diag := api.Group("/diag")
	diag.Get("/ip", handlers.GetIP)
	diag.Get("/headers", handlers.GetHeaders)

	auth := api.Group("/auth")
	auth.Post("/callback", handlers.SigninCallback)

	user := api.Group("/user", middleware.AuthMiddleware)
	user.Get("/me", handlers.GetCurrentUser)

	rosterGroup := api.Group("/roster", middleware.AuthMiddleware, middleware.AdminMiddleware)
	rosterGroup.Get("/", handlers.GetRoster)
	rosterGroup.Get("/export", handlers.ExportRoster)
	rosterGroup.Delete("/:email", handlers.RemoveUser)

	management := api.Group("/management", middleware.AuthMiddleware, middleware.AdminMiddleware)
	management.Post("/allowlist", mngmt.CreateAllowEntry)
	management.Get("/allowlist", mngmt.GetAllowEntries)
	management.Delete("/allowlist/:email", mngmt.DeleteAllowEntry)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	log.Fatal(app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)))
}
