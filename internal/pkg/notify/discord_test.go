package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMessageShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, ChunkMessage("hello", 2000))
}

func TestChunkMessageSplitsOnLines(t *testing.T) {
	msg := "line one\nline two\nline three"
	chunks := ChunkMessage(msg, 12)

	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)
}

func TestChunkMessageHardSplit(t *testing.T) {
	msg := strings.Repeat("a", 45)
	chunks := ChunkMessage(msg, 20)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 20)
	}
	assert.Equal(t, msg, strings.Join(chunks, ""))
}

func TestChunkMessagePreservesOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString(strings.Repeat("x", 50))
		b.WriteByte('\n')
	}
	chunks := ChunkMessage(b.String(), 200)

	rejoined := strings.Join(chunks, "\n")
	assert.Equal(t, strings.TrimRight(b.String(), "\n"), strings.TrimRight(rejoined, "\n"))
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestSendPostsContent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		got = append(got, payload["content"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, quietLogger())
	require.NoError(t, d.Send(context.Background(), "hello team"))
	assert.Equal(t, []string{"hello team"}, got)
}

func TestSendChunksLongMessages(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		got = append(got, payload["content"])
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, quietLogger())
	message := strings.Repeat("commit line\n", 400) // ~4800 chars
	require.NoError(t, d.Send(context.Background(), message))

	assert.Greater(t, len(got), 1)
	for _, chunk := range got {
		assert.LessOrEqual(t, len(chunk), MaxMessageLength)
	}
}

func TestSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, quietLogger())
	assert.Error(t, d.Send(context.Background(), "hello"))

	unconfigured := NewDiscord("", quietLogger())
	assert.Error(t, unconfigured.Send(context.Background(), "hello"))
}
