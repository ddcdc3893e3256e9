package managers

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventResolver_ResolvesEveryFlowRegardlessOfIV(t *testing.T) {
	registry := newMemoryRegistry()
	sealer := newTestSealer(t)
	resolver := NewEventResolver(EventResolverDependencies{Registry: registry, Sealer: sealer})
	ctx := context.Background()

	require.NoError(t, registry.UpsertBinding(ctx, domain.FlowBinding{SubscriberID: "u1", FlowID: "f1", Credential: "C"}))
	require.NoError(t, registry.UpsertBinding(ctx, domain.FlowBinding{SubscriberID: "u2", FlowID: "f2", Credential: "C", HandlerRef: "h"}))
	require.NoError(t, registry.UpsertBinding(ctx, domain.FlowBinding{SubscriberID: "u1", FlowID: "f3", Credential: "other"}))

	for i := 0; i < 3; i++ {
		token, err := sealer.Seal("C")
		require.NoError(t, err)

		subscribers, err := resolver.Resolve(ctx, token)
		require.NoError(t, err)

		sort.Slice(subscribers, func(i, j int) bool { return subscribers[i].FlowID < subscribers[j].FlowID })
		assert.Equal(t, []domain.Subscriber{
			{SubscriberID: "u1", FlowID: "f1"},
			{SubscriberID: "u2", FlowID: "f2", HandlerRef: "h"},
		}, subscribers)
	}
}

func TestEventResolver_UnregisteredCredential(t *testing.T) {
	sealer := newTestSealer(t)
	resolver := NewEventResolver(EventResolverDependencies{Registry: newMemoryRegistry(), Sealer: sealer})

	token, err := sealer.Seal("nobody")
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), token)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEventResolver_MalformedTokens(t *testing.T) {
	registry := newMemoryRegistry()
	require.NoError(t, registry.UpsertBinding(context.Background(), domain.FlowBinding{SubscriberID: "u1", FlowID: "f1", Credential: "C"}))

	resolver := NewEventResolver(EventResolverDependencies{Registry: registry, Sealer: newTestSealer(t)})

	tests := []struct {
		name  string
		token string
	}{
		{name: "invalid base58", token: "not-base58-0OIl"},
		{name: "truncated json", token: base58.Encode([]byte(`{"iv":"oKGio6SlpqeoqaqrrK2urw==","da`))},
		{name: "wrong iv length", token: base58.Encode([]byte(`{"iv":"AAAA","data":"89L8k1eYy/w12Fd46UrZbQ=="}`))},
		{name: "plaintext credential", token: "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subscribers, err := resolver.Resolve(context.Background(), tt.token)
			assert.True(t, errors.Is(err, domain.ErrDecode), "got %v", err)
			assert.Nil(t, subscribers)
		})
	}
}

func TestEventResolver_RegistryFailure(t *testing.T) {
	registry := newMemoryRegistry()
	sealer := newTestSealer(t)
	resolver := NewEventResolver(EventResolverDependencies{Registry: registry, Sealer: sealer})

	token, err := sealer.Seal("C")
	require.NoError(t, err)

	registry.err = errors.New("redis timeout")

	_, err = resolver.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrDecode))
}
