package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// TailConfig configures the command-line stream follower.
type TailConfig struct {
	ServerURL string
	APIKey    string
	Events    []string
}

// Tail connects to the live stream endpoint and prints each event as one
// JSON line on stdout, reconnecting with backoff until ctx is cancelled.
func Tail(ctx context.Context, cfg TailConfig, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		header := http.Header{}
		if cfg.APIKey != "" {
			header.Set("X-API-Key", cfg.APIKey)
		}

		log.Infof("connecting to %s", cfg.ServerURL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, header)
		if err != nil {
			log.WithError(err).Warn("connect failed")
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if len(cfg.Events) > 0 {
			sub, _ := json.Marshal(subscribeMessage{Type: "subscribe", Events: cfg.Events})
			if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
				log.WithError(err).Warn("subscribe failed")
				_ = conn.Close()
				continue
			}
		}

		if err := readLoop(ctx, conn); err != nil {
			log.WithError(err).Warn("stream closed")
		}
		_ = conn.Close()
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
	}
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
