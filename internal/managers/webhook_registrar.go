package managers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/rs/zerolog/log"
)

type webhookRegistrar struct {
	registry    domain.ListenerRegistry
	platform    domain.BotPlatform
	sealer      domain.TokenSealer
	callbackURL string
}

type WebhookRegistrarDependencies struct {
	Registry    domain.ListenerRegistry
	Platform    domain.BotPlatform
	Sealer      domain.TokenSealer
	CallbackURL string
}

func NewWebhookRegistrar(deps WebhookRegistrarDependencies) domain.WebhookRegistrar {
	return &webhookRegistrar{
		registry:    deps.Registry,
		platform:    deps.Platform,
		sealer:      deps.Sealer,
		callbackURL: deps.CallbackURL,
	}
}

// Register installs the webhook for p.Credential and records the binding.
//
// Replacing a flow's credential is not transactional: the old binding is dropped (and its
// webhook removed when no other flow uses that bot) before the new one is set, so a rejected or
// failed set leaves the flow without any webhook. Calling Register again with a valid
// credential repairs it.
func (r *webhookRegistrar) Register(ctx context.Context, p domain.RegisterParams) error {
	if blank(p.SubscriberID, p.FlowID, p.Credential) {
		return domain.ErrValidation
	}

	existing, err := r.registry.GetBinding(ctx, p.SubscriberID, p.FlowID)
	if err != nil {
		return fmt.Errorf("failed to get binding for flow %s: %w", p.FlowID, err)
	}

	if existing != nil {
		if existing.Credential == p.Credential {
			log.Debug().
				Str("flows_user", p.SubscriberID).
				Str("flow_id", p.FlowID).
				Msg("Flow already listens on this bot")

			return nil
		}

		r.releaseOldBinding(ctx, *existing)
	}

	token, err := r.sealer.Seal(p.Credential)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}

	if err := r.platform.SetWebhook(ctx, p.Credential, r.callbackURL, token); err != nil {
		if errors.Is(err, domain.ErrUpstreamRejected) {
			log.Info().
				Str("flows_user", p.SubscriberID).
				Str("flow_id", p.FlowID).
				Msg("Telegram rejected bot credential")

			return err
		}

		return fmt.Errorf("failed to set webhook: %w", err)
	}

	if err := r.registry.UpsertBinding(ctx, domain.FlowBinding{
		SubscriberID: p.SubscriberID,
		FlowID:       p.FlowID,
		Credential:   p.Credential,
		HandlerRef:   p.HandlerRef,
	}); err != nil {
		return fmt.Errorf("failed to save binding for flow %s: %w", p.FlowID, err)
	}

	log.Info().
		Str("flows_user", p.SubscriberID).
		Str("flow_id", p.FlowID).
		Msg("Listening to bot updates")

	return nil
}

// releaseOldBinding drops the flow's previous binding and unsets that bot's webhook once no
// other flow listens on it. Both steps are best effort; their outcome does not gate the
// registration.
func (r *webhookRegistrar) releaseOldBinding(ctx context.Context, old domain.FlowBinding) {
	if err := r.registry.DeleteBinding(ctx, old.SubscriberID, old.FlowID, old.Credential); err != nil {
		log.Warn().
			Err(err).
			Str("flows_user", old.SubscriberID).
			Str("flow_id", old.FlowID).
			Msg("Failed to remove previous binding")
	}

	r.unsetIfUnused(ctx, old, "Failed to unset webhook of previous bot")
}

// unsetIfUnused removes the webhook of b's bot when the registry has no listener left for it.
func (r *webhookRegistrar) unsetIfUnused(ctx context.Context, b domain.FlowBinding, failureMsg string) {
	remaining, err := r.registry.FindSubscribers(ctx, b.Credential)
	if err != nil {
		log.Warn().Err(err).Str("flow_id", b.FlowID).Msg("Failed to check remaining listeners")
		return
	}

	if len(remaining) > 0 {
		log.Debug().
			Str("flow_id", b.FlowID).
			Int("remaining", len(remaining)).
			Msg("Bot still has listeners, keeping webhook")
		return
	}

	if err := r.platform.SetWebhook(ctx, b.Credential, "", ""); err != nil {
		log.Warn().
			Err(err).
			Str("flows_user", b.SubscriberID).
			Str("flow_id", b.FlowID).
			Msg(failureMsg)
	}
}

// Revoke always clears the binding from the registry. The Telegram webhook is only unset when
// the binding existed under this credential and no other flow still listens on the bot.
func (r *webhookRegistrar) Revoke(ctx context.Context, p domain.RevokeParams) error {
	if blank(p.SubscriberID, p.FlowID, p.Credential) {
		return domain.ErrValidation
	}

	existing, err := r.registry.GetBinding(ctx, p.SubscriberID, p.FlowID)
	if err != nil {
		return fmt.Errorf("failed to get binding for flow %s: %w", p.FlowID, err)
	}

	if err := r.registry.DeleteBinding(ctx, p.SubscriberID, p.FlowID, p.Credential); err != nil {
		return fmt.Errorf("failed to delete binding for flow %s: %w", p.FlowID, err)
	}

	if existing == nil || existing.Credential != p.Credential || existing.SubscriberID != p.SubscriberID {
		return nil
	}

	r.unsetIfUnused(ctx, *existing, "Failed to unset webhook on revoke")

	return nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}

	return false
}
