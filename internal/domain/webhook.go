package domain

import "context"

type RegisterParams struct {
	SubscriberID string
	FlowID       string
	Credential   string
	HandlerRef   string
}

type RevokeParams struct {
	SubscriberID string
	FlowID       string
	Credential   string
}

type WebhookRegistrar interface {
	Register(ctx context.Context, params RegisterParams) error
	Revoke(ctx context.Context, params RevokeParams) error
}

type EventResolver interface {
	Resolve(ctx context.Context, token string) ([]Subscriber, error)
}

type ConnectedBot struct {
	Name string `json:"name"`
}

type ConnectedBots struct {
	Title string         `json:"title"`
	List  []ConnectedBot `json:"list"`
}

type ConnectedBotsQuery interface {
	ListConnectedBots(ctx context.Context, subscriberID string) (ConnectedBots, error)
}
