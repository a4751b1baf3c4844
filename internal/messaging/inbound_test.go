package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "signature-secret"

func signBody(t *testing.T, secret string, body []byte) string {
	t.Helper()
	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat":          time.Now().Unix(),
		"payload_hash": hex.EncodeToString(sum[:]),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestVerifySignature(t *testing.T) {
	p := NewInbound(InboundConfig{SignatureSecret: testSecret}, nil)
	body := []byte(`{"message_uuid":"u1"}`)

	assert.NoError(t, p.VerifySignature(signBody(t, testSecret, body), body))

	err := p.VerifySignature(signBody(t, "wrong-secret", body), body)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = p.VerifySignature(signBody(t, testSecret, []byte(`tampered`)), body)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = p.VerifySignature("", body)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNormalizeText(t *testing.T) {
	p := NewInbound(InboundConfig{AllowedSender: "14155550100"}, nil)

	msg, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1",
		From:        "14155550100",
		Timestamp:   "2026-08-28T10:00:00Z",
		MessageType: "text",
		Text:        "  <b>Book</b> a   meeting\n tomorrow ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Book a meeting tomorrow", msg.Text)
	assert.Equal(t, "u1", msg.ID)
	assert.Equal(t, 2026, msg.Timestamp.Year())
}

func TestNormalizeRejectsUnknownSender(t *testing.T) {
	p := NewInbound(InboundConfig{AllowedSender: "14155550100"}, nil)
	_, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550999", MessageType: "text", Text: "hi",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNormalizeUnsupportedType(t *testing.T) {
	p := NewInbound(InboundConfig{}, nil)
	_, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "sticker",
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNormalizeMissingFields(t *testing.T) {
	p := NewInbound(InboundConfig{}, nil)

	_, err := p.Normalize(context.Background(), WebhookPayload{MessageType: "text", Text: "hi"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "text", Text: "<p></p>",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "audio",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFetchMediaHostAllowList(t *testing.T) {
	p := NewInbound(InboundConfig{MediaHostSuffix: "api.vonage.com"}, nil)
	_, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "audio",
		Audio: &MediaRef{URL: "https://evil.example.com/media/1"},
	})
	assert.ErrorIs(t, err, ErrMedia)

	_, err = p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "audio",
		Audio: &MediaRef{URL: "ftp://api.vonage.com/media/1"},
	})
	assert.ErrorIs(t, err, ErrMedia)
}

func TestFetchMediaSuccess(t *testing.T) {
	payload := []byte("fake-ogg-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg; codecs=opus")
		w.Write(payload)
	}))
	defer server.Close()

	host, _ := url.Parse(server.URL)
	p := NewInbound(InboundConfig{MediaHostSuffix: host.Hostname()}, nil)
	msg, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "audio",
		Audio: &MediaRef{URL: server.URL + "/media/1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", msg.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), msg.Data)
}

func TestFetchMediaSizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	host, _ := url.Parse(server.URL)
	p := NewInbound(InboundConfig{MediaHostSuffix: host.Hostname(), MediaMaxBytes: 1024}, nil)
	_, err := p.Normalize(context.Background(), WebhookPayload{
		MessageUUID: "u1", From: "14155550100", MessageType: "audio",
		Audio: &MediaRef{URL: server.URL + "/media/1"},
	})
	assert.ErrorIs(t, err, ErrMedia)
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"  hello  ", "hello"},
		{"a\n\nb\tc", "a b c"},
		{"<script>x</script>keep", "xkeep"},
		{"<b>bold</b> text", "bold text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, SanitizeText(tt.in))
	}
}
