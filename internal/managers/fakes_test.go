package managers

import (
	"context"
	"errors"
	"testing"

	"github.com/flowbaker/tgbridge/internal/domain"
	"github.com/flowbaker/tgbridge/internal/secrettoken"

	"github.com/stretchr/testify/require"
)

const testStateKey = "000102030405060708090a0b0c0d0e0f1011121314151617"

func newTestSealer(t *testing.T) *secrettoken.Sealer {
	t.Helper()

	c, err := secrettoken.NewCipherFromHex(testStateKey)
	require.NoError(t, err)

	return secrettoken.NewSealer(c)
}

// memoryRegistry is a map backed ListenerRegistry mirroring the relational backend.
type memoryRegistry struct {
	bindings map[string]domain.FlowBinding
	err      error
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{bindings: map[string]domain.FlowBinding{}}
}

func (m *memoryRegistry) GetBinding(ctx context.Context, subscriberID, flowID string) (*domain.FlowBinding, error) {
	if m.err != nil {
		return nil, m.err
	}

	b, ok := m.bindings[flowID]
	if !ok {
		return nil, nil
	}

	return &b, nil
}

func (m *memoryRegistry) ListBindings(ctx context.Context, subscriberID string) ([]domain.FlowBinding, error) {
	if m.err != nil {
		return nil, m.err
	}

	var out []domain.FlowBinding
	for _, b := range m.bindings {
		if b.SubscriberID == subscriberID {
			out = append(out, b)
		}
	}

	return out, nil
}

func (m *memoryRegistry) UpsertBinding(ctx context.Context, binding domain.FlowBinding) error {
	if m.err != nil {
		return m.err
	}

	m.bindings[binding.FlowID] = binding

	return nil
}

func (m *memoryRegistry) DeleteBinding(ctx context.Context, subscriberID, flowID, credential string) error {
	if m.err != nil {
		return m.err
	}

	b, ok := m.bindings[flowID]
	if ok && b.SubscriberID == subscriberID && b.Credential == credential {
		delete(m.bindings, flowID)
	}

	return nil
}

func (m *memoryRegistry) FindSubscribers(ctx context.Context, credential string) ([]domain.Subscriber, error) {
	if m.err != nil {
		return nil, m.err
	}

	var out []domain.Subscriber
	for _, b := range m.bindings {
		if b.Credential == credential {
			out = append(out, domain.Subscriber{
				SubscriberID: b.SubscriberID,
				FlowID:       b.FlowID,
				HandlerRef:   b.HandlerRef,
			})
		}
	}

	return out, nil
}

type webhookCall struct {
	Credential  string
	CallbackURL string
	SecretToken string
}

// recordingPlatform records every SetWebhook call and rejects credentials listed in rejected.
type recordingPlatform struct {
	calls    []webhookCall
	rejected map[string]bool
	setErr   error
	profiles map[string]domain.BotProfile
	getMeErr map[string]error
	getMes   []string
}

func newRecordingPlatform() *recordingPlatform {
	return &recordingPlatform{
		rejected: map[string]bool{},
		profiles: map[string]domain.BotProfile{},
		getMeErr: map[string]error{},
	}
}

func (p *recordingPlatform) SetWebhook(ctx context.Context, credential, callbackURL, secretToken string) error {
	p.calls = append(p.calls, webhookCall{
		Credential:  credential,
		CallbackURL: callbackURL,
		SecretToken: secretToken,
	})

	if p.rejected[credential] {
		return domain.ErrUpstreamRejected
	}

	return p.setErr
}

func (p *recordingPlatform) GetMe(ctx context.Context, credential string) (domain.BotProfile, error) {
	p.getMes = append(p.getMes, credential)

	if err := p.getMeErr[credential]; err != nil {
		return domain.BotProfile{}, err
	}

	profile, ok := p.profiles[credential]
	if !ok {
		return domain.BotProfile{}, errors.New("unauthorized")
	}

	return profile, nil
}
