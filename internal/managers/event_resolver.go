package managers

import (
	"context"
	"fmt"

	"github.com/flowbaker/tgbridge/internal/domain"
)

type eventResolver struct {
	registry domain.ListenerRegistry
	sealer   domain.TokenSealer
}

type EventResolverDependencies struct {
	Registry domain.ListenerRegistry
	Sealer   domain.TokenSealer
}

func NewEventResolver(deps EventResolverDependencies) domain.EventResolver {
	return &eventResolver{
		registry: deps.Registry,
		sealer:   deps.Sealer,
	}
}

func (r *eventResolver) Resolve(ctx context.Context, token string) ([]domain.Subscriber, error) {
	if token == "" {
		return nil, domain.ErrValidation
	}

	credential, err := r.sealer.Open(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	subscribers, err := r.registry.FindSubscribers(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscribers: %w", err)
	}

	if len(subscribers) == 0 {
		return nil, domain.ErrNotFound
	}

	return subscribers, nil
}
