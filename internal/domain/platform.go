package domain

import "context"

type BotProfile struct {
	ID        int64
	FirstName string
	Username  string
}

// BotPlatform is the subset of the Telegram Bot API the bridge talks to.
type BotPlatform interface {
	// SetWebhook installs callbackURL as the bot's webhook with secretToken echoed on every
	// update. An empty callbackURL removes the webhook. A refusal by the platform is
	// reported as ErrUpstreamRejected.
	SetWebhook(ctx context.Context, credential, callbackURL, secretToken string) error
	GetMe(ctx context.Context, credential string) (BotProfile, error)
}

// TokenSealer converts credentials to the opaque routing token and back.
type TokenSealer interface {
	Seal(credential string) (string, error)
	Open(token string) (string, error)
}
