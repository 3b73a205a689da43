package routes

import (
	"github.com/gofiber/fiber/v2"

	"seamless/controllers/hook"
	"seamless/middlewares"
	"seamless/services"
)

func Setup(app *fiber.App, h *hook.Handler, creds services.CredentialStore, guard *services.ReplayGuard) {
	signed := app.Group("/seamless", middlewares.SignedHook(creds, guard))
	signed.Post("/hook", h.Gateway)
}
