package domain

import "context"

// FlowBinding associates a subscriber's flow with the bot credential it listens on.
// FlowID is globally unique; a flow has at most one active credential.
type FlowBinding struct {
	SubscriberID string
	FlowID       string
	Credential   string
	HandlerRef   string
}

// Subscriber is one entry of the reverse index: a flow listening on a credential.
type Subscriber struct {
	SubscriberID string `json:"flows_user"`
	FlowID       string `json:"flow_id"`
	HandlerRef   string `json:"handler_fn,omitempty"`
}

// ListenerRegistry persists the forward (subscriber/flow -> credential) and reverse
// (credential -> flows) views of every binding. Implementations keep both views consistent:
// a write that touches both is applied atomically.
type ListenerRegistry interface {
	// GetBinding returns nil and no error when the flow has no binding.
	GetBinding(ctx context.Context, subscriberID, flowID string) (*FlowBinding, error)
	ListBindings(ctx context.Context, subscriberID string) ([]FlowBinding, error)
	UpsertBinding(ctx context.Context, binding FlowBinding) error
	// DeleteBinding removes the flow's binding when it is stored under that credential and
	// drops the credential's reverse entry for the flow. Missing entries are not an error.
	DeleteBinding(ctx context.Context, subscriberID, flowID, credential string) error
	FindSubscribers(ctx context.Context, credential string) ([]Subscriber, error)
}
