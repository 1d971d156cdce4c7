// Package messenger implements the messaging-platform integration: the
// Graph API send client, the webhook payload types, and webhook signature
// verification.
package messenger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultSendURL is the production Graph API send endpoint.
const DefaultSendURL = "https://graph.facebook.com/v18.0/me/messages"

// Client sends messages through the platform's Send API.
type Client struct {
	sendURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithSendURL overrides the Send API endpoint, used by tests.
func WithSendURL(url string) Option {
	return func(c *Client) { c.sendURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Send API client authenticated with the page access
// token.
func NewClient(accessToken string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		sendURL:     DefaultSendURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.With(slog.String("component", "messenger_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sendRequest is the Send API request envelope.
type sendRequest struct {
	Recipient     Participant `json:"recipient"`
	Message       SendMessage `json:"message"`
	MessagingType string      `json:"messaging_type,omitempty"`
	Tag           string      `json:"tag,omitempty"`
}

// Send delivers a message to the given recipient.
func (c *Client) Send(ctx context.Context, recipientID string, msg SendMessage) error {
	return c.send(ctx, sendRequest{
		Recipient: Participant{ID: recipientID},
		Message:   msg,
	})
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	return c.Send(ctx, recipientID, SendMessage{Text: text})
}

// SendTaggedText delivers a text message outside the standard messaging
// window. The worker uses this for transcription results, which can arrive
// well after the user's last message.
func (c *Client) SendTaggedText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, sendRequest{
		Recipient:     Participant{ID: recipientID},
		Message:       SendMessage{Text: text},
		MessagingType: "MESSAGE_TAG",
		Tag:           "POST_PURCHASE_UPDATE",
	})
}

func (c *Client) send(ctx context.Context, reqBody sendRequest) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	url := fmt.Sprintf("%s?access_token=%s", c.sendURL, c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("send API rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("recipient_id", reqBody.Recipient.ID),
			slog.String("response", string(respBody)))
		return fmt.Errorf("send API returned status %d", resp.StatusCode)
	}
	return nil
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// request body using the app secret. The header value has the form
// "sha256=<hex digest>".
func VerifySignature(appSecret string, body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
