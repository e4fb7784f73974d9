package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/app/repository"
	"github.com/gitwatch/gitwatch/internal/pkg/env"
	"github.com/gitwatch/gitwatch/internal/pkg/metrics"
	"github.com/gitwatch/gitwatch/internal/pkg/webhook"
)

const defaultEventsLimit = 10
const maxEventsLimit = 100

// WebhookController owns the GitHub-facing ingestion endpoint and the
// read API over stored events. Deliveries are acknowledged as soon as the
// signature checks out; routing happens on the dispatch queue afterwards.
type WebhookController struct {
	Events  repository.EventRepository
	Enqueue func(ev webhook.InboundEvent)
	Log     *logrus.Logger
}

func NewWebhookController(events repository.EventRepository, enqueue func(ev webhook.InboundEvent), log *logrus.Logger) *WebhookController {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WebhookController{Events: events, Enqueue: enqueue, Log: log}
}

// HandleGithubWebhook verifies and acknowledges one delivery.
func (ctrl *WebhookController) HandleGithubWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("GITHUB_WEBHOOK_SECRET", "")
	if secret == "" {
		ctrl.Log.Error("GITHUB_WEBHOOK_SECRET is not configured")
		metrics.RejectedTotal.WithLabelValues("missing_secret").Inc()
		return c.Status(fiber.StatusInternalServerError).SendString("Server configuration error")
	}

	eventType := c.Get("X-GitHub-Event")
	deliveryID := c.Get("X-GitHub-Delivery")
	if eventType == "" || deliveryID == "" {
		metrics.RejectedTotal.WithLabelValues("missing_headers").Inc()
		return c.Status(fiber.StatusBadRequest).SendString("Missing X-GitHub-Event or X-GitHub-Delivery header")
	}

	signature := c.Get("X-Hub-Signature-256")
	if signature == "" {
		metrics.RejectedTotal.WithLabelValues("missing_signature").Inc()
		return c.Status(fiber.StatusUnauthorized).SendString("Missing X-Hub-Signature-256 header")
	}

	// The raw bytes are what GitHub signed; Fiber may reuse the buffer
	// after the handler returns, so copy before handing off.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	if !webhook.VerifySignature(rawBody, signature, secret) {
		ctrl.Log.WithFields(logrus.Fields{
			"delivery_id": deliveryID,
			"event_type":  eventType,
		}).Warn("invalid webhook signature, possible tampering")
		metrics.RejectedTotal.WithLabelValues("invalid_signature").Inc()
		return c.Status(fiber.StatusUnauthorized).SendString("Invalid signature")
	}

	metrics.ReceivedTotal.WithLabelValues(eventType).Inc()
	ctrl.Enqueue(webhook.InboundEvent{
		DeliveryID: deliveryID,
		EventType:  eventType,
		RawBody:    rawBody,
	})

	return c.Status(fiber.StatusOK).SendString("Event received")
}

// HandleListEvents returns the most recent stored events, newest first.
func (ctrl *WebhookController) HandleListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultEventsLimit)
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	events, err := ctrl.Events.GetRecent(limit, c.Query("type"))
	if err != nil {
		ctrl.Log.WithError(err).Error("failed to query events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to query events",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(events),
		"data":    events,
	})
}
