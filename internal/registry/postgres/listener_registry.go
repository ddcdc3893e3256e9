// Package postgres stores listener bindings in a single relational table keyed by flow ID.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/flowbaker/tgbridge/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// DB is the part of pgxpool.Pool the registry uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	getBindingQuery = `SELECT flows_user, flow_id, bot_token, handler_fn FROM listener WHERE flow_id = $1`

	listBindingsQuery = `SELECT flows_user, flow_id, bot_token, handler_fn FROM listener WHERE flows_user = $1`

	upsertBindingQuery = `
		INSERT INTO listener (flows_user, flow_id, bot_token, handler_fn)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (flow_id)
		DO UPDATE SET flows_user = excluded.flows_user,
			bot_token = excluded.bot_token,
			handler_fn = excluded.handler_fn`

	deleteBindingQuery = `DELETE FROM listener WHERE flow_id = $1 AND flows_user = $2 AND bot_token = $3`

	findSubscribersQuery = `SELECT flows_user, flow_id, handler_fn FROM listener WHERE bot_token = $1`
)

// ListenerRegistry reads handler_fn as nullable: tables created by older deployments allow NULL there.
type ListenerRegistry struct {
	db DB
}

func NewListenerRegistry(db DB) *ListenerRegistry {
	return &ListenerRegistry{db: db}
}

// Connect opens a pool and verifies the database answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

// Migrate creates the listener table and its indexes when they do not exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply listener schema: %w", err)
	}

	return nil
}

func (r *ListenerRegistry) GetBinding(ctx context.Context, subscriberID, flowID string) (*domain.FlowBinding, error) {
	var (
		b       domain.FlowBinding
		handler pgtype.Text
	)

	err := r.db.QueryRow(ctx, getBindingQuery, flowID).Scan(&b.SubscriberID, &b.FlowID, &b.Credential, &handler)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query listener: %w", err)
	}

	b.HandlerRef = handler.String

	return &b, nil
}

func (r *ListenerRegistry) ListBindings(ctx context.Context, subscriberID string) ([]domain.FlowBinding, error) {
	rows, err := r.db.Query(ctx, listBindingsQuery, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query listeners: %w", err)
	}

	bindings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FlowBinding, error) {
		var (
			b       domain.FlowBinding
			handler pgtype.Text
		)
		err := row.Scan(&b.SubscriberID, &b.FlowID, &b.Credential, &handler)
		b.HandlerRef = handler.String
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan listeners: %w", err)
	}

	return bindings, nil
}

func (r *ListenerRegistry) UpsertBinding(ctx context.Context, binding domain.FlowBinding) error {
	_, err := r.db.Exec(ctx, upsertBindingQuery, binding.SubscriberID, binding.FlowID, binding.Credential, binding.HandlerRef)
	if err != nil {
		return fmt.Errorf("failed to upsert listener: %w", err)
	}

	return nil
}

func (r *ListenerRegistry) DeleteBinding(ctx context.Context, subscriberID, flowID, credential string) error {
	_, err := r.db.Exec(ctx, deleteBindingQuery, flowID, subscriberID, credential)
	if err != nil {
		return fmt.Errorf("failed to delete listener: %w", err)
	}

	return nil
}

func (r *ListenerRegistry) FindSubscribers(ctx context.Context, credential string) ([]domain.Subscriber, error) {
	rows, err := r.db.Query(ctx, findSubscribersQuery, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to query listeners: %w", err)
	}

	subscribers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Subscriber, error) {
		var (
			s       domain.Subscriber
			handler pgtype.Text
		)
		err := row.Scan(&s.SubscriberID, &s.FlowID, &handler)
		s.HandlerRef = handler.String
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan listeners: %w", err)
	}

	return subscribers, nil
}
