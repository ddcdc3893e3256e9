package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowbaker/tgbridge/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ClientConfig holds configuration for the Telegram client
type ClientConfig struct {
	// APIEndpoint is a format string taking the bot token and the method name
	APIEndpoint string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ClientOption is a function that configures the client
type ClientOption func(*ClientConfig)

func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		APIEndpoint: tgbotapi.APIEndpoint,
		Timeout:     10 * time.Second,
	}
}

func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *ClientConfig) {
		c.APIEndpoint = endpoint
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = client
	}
}

// Client talks to the Telegram Bot API on behalf of any bot whose token it is handed.
// It keeps no per-bot state.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// SetWebhook calls setWebhook. An empty callbackURL removes the webhook.
func (c *Client) SetWebhook(ctx context.Context, credential, callbackURL, secretToken string) error {
	params := tgbotapi.Params{"url": callbackURL}
	params.AddNonEmpty("secret_token", secretToken)

	if _, err := c.bot(ctx, credential).MakeRequest("setWebhook", params); err != nil {
		return classify("setWebhook", err)
	}

	return nil
}

func (c *Client) GetMe(ctx context.Context, credential string) (domain.BotProfile, error) {
	user, err := c.bot(ctx, credential).GetMe()
	if err != nil {
		return domain.BotProfile{}, classify("getMe", err)
	}

	return domain.BotProfile{
		ID:        user.ID,
		FirstName: user.FirstName,
		Username:  user.UserName,
	}, nil
}

// bot builds a throwaway BotAPI bound to ctx. NewBotAPI is avoided because it calls getMe.
func (c *Client) bot(ctx context.Context, credential string) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  credential,
		Client: contextClient{ctx: ctx, client: c.httpClient},
	}
	bot.SetAPIEndpoint(c.config.APIEndpoint)

	return bot
}

// classify maps a Bot API refusal (ok: false) to ErrUpstreamRejected and keeps transport
// errors as they are.
func classify(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %s (code %d)", method, domain.ErrUpstreamRejected, apiErr.Message, apiErr.Code)
	}

	return fmt.Errorf("%s: %w", method, err)
}

// contextClient attaches a request context to the calls BotAPI makes.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
