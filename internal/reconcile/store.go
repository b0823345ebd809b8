package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marcha/payments-service/pkg/contracts"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore applies reconciliation updates against Postgres. The whole update
// runs in one transaction so a gateway retry after a failure never sees a
// half-applied order.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Apply(ctx context.Context, upd Update) (Applied, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Applied{}, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	docID, customerID, err := findOrder(ctx, tx, upd.OrderID)
	if err != nil {
		return Applied{}, err
	}

	// Empty token (e-wallet types) leaves any stored token as is.
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET method_payment = $2,
		    status = $3,
		    settlement_token = COALESCE(NULLIF($4, ''), settlement_token),
		    updated_at = NOW()
		WHERE order_id = $1`,
		docID, upd.Method, string(upd.Status), upd.Token,
	)
	if err != nil {
		return Applied{}, storeErr("update order", err)
	}

	applied := Applied{CustomerID: customerID}

	if upd.Credit {
		// Check-and-mark in one statement. A concurrent delivery for the
		// same order loses the conflict and skips the credit branch.
		tag, err := tx.Exec(ctx, `
			INSERT INTO settlement_records (order_id, credited_at)
			VALUES ($1, NOW())
			ON CONFLICT (order_id) DO NOTHING`,
			upd.OrderID,
		)
		if err != nil {
			return Applied{}, storeErr("insert settlement record", err)
		}

		if tag.RowsAffected() == 1 {
			_, err = tx.Exec(ctx, `
				INSERT INTO accounts (user_id, balance, created_at, updated_at)
				VALUES ($1, $2, NOW(), NOW())
				ON CONFLICT (user_id)
				DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
				customerID, upd.Amount,
			)
			if err != nil {
				return Applied{}, storeErr("credit balance", err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO account_transactions (id, user_id, order_id, amount, kind)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.New(), customerID, docID, upd.Amount, "credit",
			)
			if err != nil {
				return Applied{}, storeErr("insert journal entry", err)
			}

			applied.Credited = true
		}
	}

	if err := insertOutbox(ctx, tx, upd, customerID, applied.Credited); err != nil {
		return Applied{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Applied{}, storeErr("commit", err)
	}
	return applied, nil
}

// findOrder resolves the business order id to the order document. The
// external id is expected to be unique; more than one match is a data
// fault that gets reported instead of silently resolved by picking the
// first row.
func findOrder(ctx context.Context, tx pgx.Tx, externalID string) (uuid.UUID, uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		SELECT order_id, customer_id
		FROM orders
		WHERE external_id = $1`,
		externalID,
	)
	if err != nil {
		return uuid.Nil, uuid.Nil, storeErr("select order", err)
	}
	defer rows.Close()

	var docIDs, customers []uuid.UUID
	for rows.Next() {
		var docID, customerID uuid.UUID
		if err := rows.Scan(&docID, &customerID); err != nil {
			return uuid.Nil, uuid.Nil, storeErr("scan order", err)
		}
		docIDs = append(docIDs, docID)
		customers = append(customers, customerID)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, uuid.Nil, storeErr("select order", err)
	}

	switch len(docIDs) {
	case 0:
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %s", ErrOrderNotFound, externalID)
	case 1:
		return docIDs[0], customers[0], nil
	default:
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %q matches %d orders", ErrOrderConflict, externalID, len(docIDs))
	}
}

func insertOutbox(ctx context.Context, tx pgx.Tx, upd Update, customerID uuid.UUID, credited bool) error {
	event := contracts.ReconciledEvent{
		EventID:           uuid.New().String(),
		OrderID:           upd.OrderID,
		CustomerID:        customerID.String(),
		TransactionStatus: string(upd.Status),
		MethodPayment:     upd.Method,
		SettlementToken:   upd.Token,
		GrossAmount:       upd.Amount,
		Credited:          credited,
		ReconciledAt:      time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reconciled event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reconciliation_outbox (event_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		event.EventID, "payments.reconciled", payload,
	)
	if err != nil {
		return storeErr("insert outbox", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
