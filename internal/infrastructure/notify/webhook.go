package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// WebhookConfig configures delivery to a push gateway.
type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// WebhookNotifier posts notifications as JSON to a push gateway.
type WebhookNotifier struct {
	client *fasthttp.Client
	cfg    WebhookConfig
}

type webhookPayload struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type webhookResponse struct {
	ID string `json:"id"`
}

// NewWebhookNotifier builds a notifier. A nil client gets a default fasthttp.Client.
func NewWebhookNotifier(cfg WebhookConfig, client *fasthttp.Client) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &fasthttp.Client{
			Name:         "followup-notifier",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}
	}
	return &WebhookNotifier{client: client, cfg: cfg}
}

// RequestPermission is granted only when a gateway URL is configured.
func (n *WebhookNotifier) RequestPermission(context.Context) (bool, error) {
	return n.cfg.URL != "", nil
}

// Show delivers one notification and returns the gateway's id, or a local one
// when the gateway does not return any.
func (n *WebhookNotifier) Show(ctx context.Context, title, body string, data map[string]string) (string, error) {
	if n.cfg.URL == "" {
		return "", fmt.Errorf("webhook notifier: no url configured")
	}

	payload := webhookPayload{ID: uuid.NewString(), Title: title, Body: body, Data: data}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}
	req.SetBody(raw)

	deadline := time.Now().Add(n.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := n.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("webhook notifier: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("webhook notifier: gateway returned %d", status)
	}

	var out webhookResponse
	if len(resp.Body()) > 0 && json.Unmarshal(resp.Body(), &out) == nil && out.ID != "" {
		return out.ID, nil
	}
	return payload.ID, nil
}
