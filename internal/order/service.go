package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// ExternalIDPrefix matches the order id format the mobile clients already
// send to the gateway.
const ExternalIDPrefix = "order-id-"

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create persists a pending order for a checkout session. suffix is the
// caller-chosen order id fragment; the stored external id is
// "order-id-<suffix>".
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, suffix string, amount int64) (*Order, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if suffix == "" {
		return nil, fmt.Errorf("order id is required")
	}

	now := time.Now().UTC()
	docID := uuid.New()
	o := &Order{
		ID:         docID.String(),
		ExternalID: ExternalIDPrefix + suffix,
		CustomerID: customerID.String(),
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (order_id, external_id, customer_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		docID, o.ExternalID, customerID, amount, StatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

// FindByExternalID returns the newest order carrying the business order id.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT order_id, external_id, customer_id, amount, status,
		       COALESCE(method_payment, ''), settlement_token, created_at, updated_at
		FROM orders
		WHERE external_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		externalID,
	)
	return scanOrder(row)
}

// List returns a customer's orders, newest first.
func (s *Service) List(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, external_id, customer_id, amount, status,
		       COALESCE(method_payment, ''), settlement_token, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var token *string
	err := row.Scan(&o.ID, &o.ExternalID, &o.CustomerID, &o.Amount, &o.Status,
		&o.MethodPayment, &token, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if token != nil {
		o.SettlementToken = *token
	}
	return &o, nil
}
