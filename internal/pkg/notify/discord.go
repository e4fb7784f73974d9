package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxMessageLength is Discord's hard limit for one webhook message.
const MaxMessageLength = 2000

// Discord posts plain-text messages to a Discord webhook URL. Messages
// over the channel limit are split and sent as separate calls in order.
type Discord struct {
	webhookURL string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewDiscord(webhookURL string, log *logrus.Logger) *Discord {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Send delivers the message, chunking when needed. The first failed chunk
// aborts the rest so the channel never sees a gap in the middle.
func (d *Discord) Send(ctx context.Context, message string) error {
	if d.webhookURL == "" {
		return fmt.Errorf("discord webhook url is not configured")
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}

	for _, chunk := range ChunkMessage(message, MaxMessageLength) {
		if err := d.post(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (d *Discord) post(ctx context.Context, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("discord responded with status %d", resp.StatusCode)
	}

	d.log.Debug("discord notification sent")
	return nil
}

// ChunkMessage splits a message into pieces of at most limit characters,
// breaking on line boundaries where one exists inside the window.
func ChunkMessage(message string, limit int) []string {
	if limit <= 0 || len(message) <= limit {
		return []string{message}
	}

	var chunks []string
	rest := message
	for len(rest) > limit {
		cut := strings.LastIndexByte(rest[:limit+1], '\n')
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(rest[:cut], "\n"))
		rest = strings.TrimLeft(rest[cut:], "\n")
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}
