package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
)

const defaultGupshupAPIBaseURL = "https://api.gupshup.io/wa/api/v1"

// Button is one quick-reply option on an outbound message. ID is the token
// the BSP echoes back in the button_reply payload.
type Button struct {
	ID    string
	Title string
}

// Sender is the outbound chat surface the rest of the core depends on.
// Sends are fire-and-forget and safe to retry.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (string, error)
	SendButtons(ctx context.Context, phone, body string, buttons []Button) (string, error)
	SendList(ctx context.Context, phone, body, buttonTitle string, options []Button) (string, error)
}

// GupshupClient sends WhatsApp messages through the Gupshup BSP API.
type GupshupClient struct {
	APIKey     string
	AppName    string
	Source     string // bot's WhatsApp number
	APIBaseURL string

	HTTPClient *http.Client
}

func NewGupshupClientFromEnv() *GupshupClient {
	return &GupshupClient{
		APIKey:     strings.TrimSpace(env.GetEnv("GUPSHUP_API_KEY", "")),
		AppName:    strings.TrimSpace(env.GetEnv("GUPSHUP_APP_NAME", "")),
		Source:     strings.TrimSpace(env.GetEnv("GUPSHUP_SOURCE_NUMBER", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("GUPSHUP_API_BASE_URL", defaultGupshupAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendText delivers a plain text message and returns the BSP message id.
func (c *GupshupClient) SendText(ctx context.Context, phone, text string) (string, error) {
	msg := map[string]string{
		"type": "text",
		"text": text,
	}
	return c.send(ctx, phone, msg)
}

// SendButtons delivers a text message with quick-reply buttons.
func (c *GupshupClient) SendButtons(ctx context.Context, phone, body string, buttons []Button) (string, error) {
	options := make([]map[string]string, 0, len(buttons))
	for _, b := range buttons {
		options = append(options, map[string]string{
			"type":         "text",
			"title":        b.Title,
			"postbackText": b.ID,
		})
	}
	msg := map[string]interface{}{
		"type": "quick_reply",
		"content": map[string]string{
			"type": "text",
			"text": body,
		},
		"options": options,
	}
	return c.send(ctx, phone, msg)
}

// SendList delivers an interactive list message. WhatsApp caps quick-reply
// buttons at three, so prompts with more options go out as a list. The row
// ids come back in the list_reply payload the same way button ids do.
func (c *GupshupClient) SendList(ctx context.Context, phone, body, buttonTitle string, options []Button) (string, error) {
	items := make([]map[string]string, 0, len(options))
	for _, o := range options {
		items = append(items, map[string]string{
			"type":         "text",
			"title":        o.Title,
			"postbackText": o.ID,
		})
	}
	msg := map[string]interface{}{
		"type":  "list",
		"title": body,
		"body":  body,
		"globalButtons": []map[string]string{
			{"type": "text", "title": buttonTitle},
		},
		"items": []map[string]interface{}{
			{"title": buttonTitle, "options": items},
		},
	}
	return c.send(ctx, phone, msg)
}

func (c *GupshupClient) send(ctx context.Context, phone string, message interface{}) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.Source) == "" {
		return "", errors.New("GUPSHUP_API_KEY/GUPSHUP_SOURCE_NUMBER are not configured")
	}

	encoded, err := json.Marshal(message)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.Source)
	form.Set("destination", strings.TrimSpace(phone))
	form.Set("message", string(encoded))
	form.Set("src.name", c.AppName)

	u := strings.TrimRight(c.APIBaseURL, "/") + "/msg"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gupshup send failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		Status    string `json:"status"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.Status != "submitted" {
		return "", fmt.Errorf("gupshup send not accepted: status=%s body=%s", out.Status, string(body))
	}
	return out.MessageID, nil
}
