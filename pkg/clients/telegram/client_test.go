package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedCall struct {
	Path        string
	URL         string
	SecretToken string
	HasSecret   bool
}

type fakeBotAPI struct {
	mu    sync.Mutex
	calls []receivedCall
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())

		f.mu.Lock()
		_, hasSecret := r.PostForm["secret_token"]
		f.calls = append(f.calls, receivedCall{
			Path:        r.URL.Path,
			URL:         r.PostForm.Get("url"),
			SecretToken: r.PostForm.Get("secret_token"),
			HasSecret:   hasSecret,
		})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/bot123:good/setWebhook":
			_, _ = w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
		case "/bot123:good/getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":123,"is_bot":true,"first_name":"Relay Bot","username":"relay_bot"}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		}
	}
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	t.Helper()

	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(WithAPIEndpoint(srv.URL+"/bot%s/%s"), WithTimeout(time.Second)), fake
}

func TestClient_SetWebhook(t *testing.T) {
	client, fake := newTestClient(t)

	err := client.SetWebhook(context.Background(), "123:good", "https://flows.example/hook", "opaque")
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, receivedCall{
		Path:        "/bot123:good/setWebhook",
		URL:         "https://flows.example/hook",
		SecretToken: "opaque",
		HasSecret:   true,
	}, fake.calls[0])
}

func TestClient_UnsetWebhookSendsEmptyURL(t *testing.T) {
	client, fake := newTestClient(t)

	require.NoError(t, client.SetWebhook(context.Background(), "123:good", "", ""))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "", fake.calls[0].URL)
	assert.False(t, fake.calls[0].HasSecret)
}

func TestClient_SetWebhookRejected(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.SetWebhook(context.Background(), "999:bad", "https://flows.example/hook", "opaque")
	assert.True(t, errors.Is(err, domain.ErrUpstreamRejected), "got %v", err)
}

func TestClient_GetMe(t *testing.T) {
	client, _ := newTestClient(t)

	profile, err := client.GetMe(context.Background(), "123:good")
	require.NoError(t, err)

	assert.Equal(t, domain.BotProfile{ID: 123, FirstName: "Relay Bot", Username: "relay_bot"}, profile)
}

func TestClient_GetMeRejected(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetMe(context.Background(), "999:bad")
	assert.True(t, errors.Is(err, domain.ErrUpstreamRejected))
}

func TestClient_TransportFailureIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/bot%s/%s"
	srv.Close()

	client := NewClient(WithAPIEndpoint(endpoint))

	err := client.SetWebhook(context.Background(), "123:good", "https://flows.example/hook", "opaque")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUpstreamRejected))
}

func TestClient_HonoursContext(t *testing.T) {
	client, fake := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.SetWebhook(ctx, "123:good", "https://flows.example/hook", "opaque")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, fake.calls)
}
