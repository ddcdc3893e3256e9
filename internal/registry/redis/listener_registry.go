// Package redis stores listener bindings as hashes: a forward hash per subscriber
// (flow -> credential), a handler hash per subscriber (flow -> handler) and a reverse hash per
// credential (flow -> subscriber). Every write touching more than one hash runs in a single
// MULTI/EXEC guarded by WATCH.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "telegram"

// maxTxAttempts bounds how often a WATCH transaction is replayed after losing a race.
const maxTxAttempts = 100

// ErrConcurrentUpdate is returned when a watched key kept changing for maxTxAttempts attempts.
var ErrConcurrentUpdate = errors.New("listener index modified concurrently")

type ListenerRegistry struct {
	client redis.UniversalClient
	prefix string
}

type ListenerRegistryDependencies struct {
	Client    redis.UniversalClient
	KeyPrefix string
}

func NewListenerRegistry(deps ListenerRegistryDependencies) *ListenerRegistry {
	prefix := deps.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &ListenerRegistry{
		client: deps.Client,
		prefix: prefix,
	}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func (r *ListenerRegistry) listenKey(subscriberID string) string {
	return fmt.Sprintf("%s:%s:listen", r.prefix, subscriberID)
}

func (r *ListenerRegistry) handlerKey(subscriberID string) string {
	return fmt.Sprintf("%s:%s:handler", r.prefix, subscriberID)
}

func (r *ListenerRegistry) triggerKey(credential string) string {
	return fmt.Sprintf("%s:%s:trigger", r.prefix, credential)
}

func (r *ListenerRegistry) GetBinding(ctx context.Context, subscriberID, flowID string) (*domain.FlowBinding, error) {
	var credentialCmd, handlerCmd *redis.StringCmd

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		credentialCmd = pipe.HGet(ctx, r.listenKey(subscriberID), flowID)
		handlerCmd = pipe.HGet(ctx, r.handlerKey(subscriberID), flowID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read listener: %w", err)
	}

	credential, err := credentialCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read listener: %w", err)
	}

	handler, err := handlerCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read listener handler: %w", err)
	}

	return &domain.FlowBinding{
		SubscriberID: subscriberID,
		FlowID:       flowID,
		Credential:   credential,
		HandlerRef:   handler,
	}, nil
}

func (r *ListenerRegistry) ListBindings(ctx context.Context, subscriberID string) ([]domain.FlowBinding, error) {
	var listenCmd, handlerCmd *redis.MapStringStringCmd

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		listenCmd = pipe.HGetAll(ctx, r.listenKey(subscriberID))
		handlerCmd = pipe.HGetAll(ctx, r.handlerKey(subscriberID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read listeners: %w", err)
	}

	handlers := handlerCmd.Val()
	bindings := make([]domain.FlowBinding, 0, len(listenCmd.Val()))

	for flowID, credential := range listenCmd.Val() {
		bindings = append(bindings, domain.FlowBinding{
			SubscriberID: subscriberID,
			FlowID:       flowID,
			Credential:   credential,
			HandlerRef:   handlers[flowID],
		})
	}

	return bindings, nil
}

// UpsertBinding writes the forward, handler and reverse entries in one transaction and drops the
// reverse entry of the credential the flow previously listened on.
func (r *ListenerRegistry) UpsertBinding(ctx context.Context, b domain.FlowBinding) error {
	listenKey := r.listenKey(b.SubscriberID)

	txf := func(tx *redis.Tx) error {
		previous, err := tx.HGet(ctx, listenKey, b.FlowID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != b.Credential {
				pipe.HDel(ctx, r.triggerKey(previous), b.FlowID)
			}

			pipe.HSet(ctx, listenKey, b.FlowID, b.Credential)
			pipe.HSet(ctx, r.triggerKey(b.Credential), b.FlowID, b.SubscriberID)

			if b.HandlerRef != "" {
				pipe.HSet(ctx, r.handlerKey(b.SubscriberID), b.FlowID, b.HandlerRef)
			} else {
				pipe.HDel(ctx, r.handlerKey(b.SubscriberID), b.FlowID)
			}

			return nil
		})

		return err
	}

	return r.watch(ctx, "upsert listener", txf, listenKey)
}

// DeleteBinding removes the forward entry only when it holds credential, and the reverse entry
// only when it points at subscriberID, so a mismatched call never splits the two views.
func (r *ListenerRegistry) DeleteBinding(ctx context.Context, subscriberID, flowID, credential string) error {
	listenKey := r.listenKey(subscriberID)
	triggerKey := r.triggerKey(credential)

	txf := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, listenKey, flowID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		owner, err := tx.HGet(ctx, triggerKey, flowID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if stored != credential && owner != subscriberID {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if stored == credential {
				pipe.HDel(ctx, listenKey, flowID)
				pipe.HDel(ctx, r.handlerKey(subscriberID), flowID)
			}

			if owner == subscriberID {
				pipe.HDel(ctx, triggerKey, flowID)
			}

			return nil
		})

		return err
	}

	return r.watch(ctx, "delete listener", txf, listenKey, triggerKey)
}

func (r *ListenerRegistry) FindSubscribers(ctx context.Context, credential string) ([]domain.Subscriber, error) {
	flows, err := r.client.HGetAll(ctx, r.triggerKey(credential)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger index: %w", err)
	}

	if len(flows) == 0 {
		return nil, nil
	}

	subscribers := make([]domain.Subscriber, 0, len(flows))
	handlerCmds := make([]*redis.StringCmd, 0, len(flows))

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for flowID, subscriberID := range flows {
			subscribers = append(subscribers, domain.Subscriber{
				SubscriberID: subscriberID,
				FlowID:       flowID,
			})
			handlerCmds = append(handlerCmds, pipe.HGet(ctx, r.handlerKey(subscriberID), flowID))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read listener handlers: %w", err)
	}

	for i, cmd := range handlerCmds {
		subscribers[i].HandlerRef = cmd.Val()
	}

	return subscribers, nil
}

// watch runs txf under WATCH and replays it when another writer touched the keys first.
// Writes for different flows of one subscriber share the listen hash, so losing a race is routine.
func (r *ListenerRegistry) watch(ctx context.Context, op string, txf func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}

		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to %s: %w", op, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("failed to %s: %w", op, ctxErr)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, ErrConcurrentUpdate)
}
