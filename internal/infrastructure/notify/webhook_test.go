package notify

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func startGateway(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var got webhookPayload
	var auth string
	client := startGateway(t, func(ctx *fasthttp.RequestCtx) {
		auth = string(ctx.Request.Header.Peek("Authorization"))
		_ = json.Unmarshal(ctx.PostBody(), &got)
		ctx.SetStatusCode(fasthttp.StatusAccepted)
		ctx.SetBodyString(`{"id":"push-42"}`)
	})

	n := NewWebhookNotifier(WebhookConfig{URL: "http://gateway/push", Token: "secret", Timeout: time.Second}, client)

	granted, err := n.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	id, err := n.Show(context.Background(), "Call Sarah", "Time to follow up", map[string]string{"reminder_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "push-42", id)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "Call Sarah", got.Title)
	assert.Equal(t, "r1", got.Data["reminder_id"])
}

func TestWebhookNotifierGatewayError(t *testing.T) {
	client := startGateway(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})
	n := NewWebhookNotifier(WebhookConfig{URL: "http://gateway/push"}, client)

	_, err := n.Show(context.Background(), "t", "b", nil)
	assert.Error(t, err)
}

func TestWebhookNotifierWithoutURLIsDenied(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{}, nil)
	granted, err := n.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
}
