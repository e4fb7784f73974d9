package webhook

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/gitwatch/gitwatch/app/models"
	"github.com/gitwatch/gitwatch/internal/pkg/metrics"
)

// EventStore is the slice of the repository the router needs.
type EventStore interface {
	CreateIfNotExists(event *models.GithubEvent) (bool, error)
}

// Notifier forwards a human-readable message to the chat channel.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Broadcaster pushes a routed event to live stream subscribers.
type Broadcaster interface {
	Broadcast(eventType string, data []byte)
}

// Router dispatches a verified delivery to its type-specific handler.
// Dispatch runs after the HTTP response has been sent, so every failure
// here ends in the log, never in a status code.
type Router struct {
	Store    EventStore
	Notifier Notifier
	Stream   Broadcaster
	Log      *logrus.Logger
}

func NewRouter(store EventStore, notifier Notifier, stream Broadcaster, log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{Store: store, Notifier: notifier, Stream: stream, Log: log}
}

// Dispatch routes one delivery. It never panics out: the router is the
// error boundary for all post-response processing.
func (r *Router) Dispatch(ctx context.Context, ev InboundEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Log.WithFields(logrus.Fields{
				"delivery_id": ev.DeliveryID,
				"event_type":  ev.EventType,
			}).Errorf("panic while processing event: %v", rec)
		}
	}()

	log := r.Log.WithFields(logrus.Fields{
		"delivery_id": ev.DeliveryID,
		"event_type":  ev.EventType,
		"repository":  repoName(ev.RawBody),
	})

	var summary string
	switch ev.EventType {
	case EventPush:
		var p PushPayload
		unmarshalLenient(log, ev.RawBody, &p)
		summary = pushSummary(p)
	case EventIssues:
		var p IssuesPayload
		unmarshalLenient(log, ev.RawBody, &p)
		summary = issuesSummary(p)
	case EventStar:
		var p StarPayload
		unmarshalLenient(log, ev.RawBody, &p)
		summary = starSummary(p)
	case EventWatch:
		var p WatchPayload
		unmarshalLenient(log, ev.RawBody, &p)
		summary = watchSummary(p)
	case EventPing:
		log.Info("webhook connection verified")
		return
	default:
		log.Info("unhandled event type, ignoring")
		return
	}

	stored := r.store(log, ev)
	if !stored {
		// Redelivery: the row already exists, don't ping the channel twice.
		return
	}

	r.broadcast(ev)
	r.notify(ctx, log, summary)
}

// store appends the delivery and reports whether it was new. Storage
// failures are logged and treated as "new" so the notification still goes
// out; the sender's redelivery converges the store.
func (r *Router) store(log *logrus.Entry, ev InboundEvent) bool {
	created, err := r.Store.CreateIfNotExists(&models.GithubEvent{
		DeliveryID:  ev.DeliveryID,
		EventType:   ev.EventType,
		PayloadJSON: string(ev.RawBody),
	})
	if err != nil {
		metrics.StoreFailures.Inc()
		log.WithError(err).Error("failed to persist event")
		return true
	}
	if !created {
		metrics.DuplicateDeliveries.Inc()
		log.Info("duplicate delivery, skipping")
		return false
	}
	metrics.EventsStored.Inc()
	return true
}

func (r *Router) notify(ctx context.Context, log *logrus.Entry, summary string) {
	if r.Notifier == nil || summary == "" {
		return
	}
	if err := r.Notifier.Send(ctx, summary); err != nil {
		metrics.NotifyFailures.Inc()
		log.WithError(err).Error("failed to send notification")
	}
}

func (r *Router) broadcast(ev InboundEvent) {
	if r.Stream == nil {
		return
	}
	msg, err := json.Marshal(struct {
		Type       string          `json:"type"`
		Event      string          `json:"event"`
		DeliveryID string          `json:"delivery_id"`
		Payload    json.RawMessage `json:"payload"`
	}{
		Type:       "event",
		Event:      ev.EventType,
		DeliveryID: ev.DeliveryID,
		Payload:    json.RawMessage(ev.RawBody),
	})
	if err != nil {
		return
	}
	r.Stream.Broadcast(ev.EventType, msg)
}

// unmarshalLenient tolerates malformed payloads: summaries degrade to
// placeholder values instead of failing the whole event.
func unmarshalLenient(log *logrus.Entry, raw []byte, v any) {
	if err := json.Unmarshal(raw, v); err != nil {
		log.WithError(err).Warn("malformed payload, using placeholders")
	}
}
