package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signFor(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	secret := "top-secret"

	assert.True(t, VerifySignature(body, signFor(body, secret), secret))

	// Deterministic for identical inputs.
	assert.True(t, VerifySignature(body, signFor(body, secret), secret))
}

func TestVerifySignatureRejects(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	secret := "top-secret"
	valid := signFor(body, secret)

	tests := []struct {
		name   string
		body   []byte
		sig    string
		secret string
	}{
		{name: "missing header", body: body, sig: "", secret: secret},
		{name: "missing secret", body: body, sig: valid, secret: ""},
		{name: "missing prefix", body: body, sig: valid[len("sha256="):], secret: secret},
		{name: "bad hex", body: body, sig: "sha256=zzzz", secret: secret},
		{name: "truncated digest", body: body, sig: valid[:20], secret: secret},
		{name: "wrong secret", body: body, sig: signFor(body, "other"), secret: secret},
		{name: "tampered body", body: []byte(`{"ref":"refs/heads/evil"}`), sig: valid, secret: secret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifySignature(tt.body, tt.sig, tt.secret))
		})
	}
}

func TestSignBodyRoundTrip(t *testing.T) {
	body := []byte(`payload bytes, not necessarily JSON`)
	assert.True(t, VerifySignature(body, SignBody(body, "s3cret"), "s3cret"))
}
