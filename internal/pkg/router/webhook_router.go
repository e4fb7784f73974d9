package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/app/controllers"
	"github.com/gitwatch/gitwatch/internal/pkg/middleware"
	"github.com/gitwatch/gitwatch/internal/pkg/stream"
)

// WebhookRouter installs the webhook ingestion endpoint, the protected
// read API, the live stream, and the metrics endpoint.
type WebhookRouter struct {
	Controller *controllers.WebhookController
	Hub        *stream.Hub
	Log        *logrus.Logger
}

func NewWebhookRouter(controller *controllers.WebhookController, hub *stream.Hub, log *logrus.Logger) *WebhookRouter {
	return &WebhookRouter{Controller: controller, Hub: hub, Log: log}
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("gitwatch is running")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	grp := app.Group("/webhook")
	grp.Post("/", h.Controller.HandleGithubWebhook)
	grp.Get("/events", middleware.APIKeyAuthMiddleware(h.Log), h.Controller.HandleListEvents)

	if h.Hub != nil {
		grp.Use("/stream", middleware.APIKeyAuthMiddleware(h.Log), func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		grp.Get("/stream", websocket.New(func(conn *websocket.Conn) {
			h.Hub.Serve(conn)
		}))
	}
}
