package managers

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowbaker/tgbridge/internal/domain"
)

const connectedBotsTitle = "Connected Bot"

type connectedBotsQuery struct {
	registry domain.ListenerRegistry
	platform domain.BotPlatform
}

type ConnectedBotsQueryDependencies struct {
	Registry domain.ListenerRegistry
	Platform domain.BotPlatform
}

func NewConnectedBotsQuery(deps ConnectedBotsQueryDependencies) domain.ConnectedBotsQuery {
	return &connectedBotsQuery{
		registry: deps.Registry,
		platform: deps.Platform,
	}
}

// ListConnectedBots fails as a whole when any single getMe call fails. The failure is always
// internal, even when Telegram rejected the stored credential.
func (q *connectedBotsQuery) ListConnectedBots(ctx context.Context, subscriberID string) (domain.ConnectedBots, error) {
	if blank(subscriberID) {
		return domain.ConnectedBots{}, domain.ErrValidation
	}

	bindings, err := q.registry.ListBindings(ctx, subscriberID)
	if err != nil {
		return domain.ConnectedBots{}, fmt.Errorf("failed to list bindings: %w", err)
	}

	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].FlowID < bindings[j].FlowID
	})

	bots := make([]domain.ConnectedBot, 0, len(bindings))

	for _, binding := range bindings {
		profile, err := q.platform.GetMe(ctx, binding.Credential)
		if err != nil {
			// Not wrapped: a dead bot makes the listing fail as a server error, not a bad request.
			return domain.ConnectedBots{}, fmt.Errorf("failed to get bot of flow %s: %v", binding.FlowID, err)
		}

		bots = append(bots, domain.ConnectedBot{Name: profile.FirstName})
	}

	return domain.ConnectedBots{
		Title: connectedBotsTitle,
		List:  bots,
	}, nil
}
