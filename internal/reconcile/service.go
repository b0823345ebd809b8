// Package reconcile applies gateway payment notifications to the order
// record and the customer balance ledger. Deliveries are at-least-once and
// may interleave for the same order; the settlement record keyed by order
// id guarantees the balance credit lands at most once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"marcha/payments-service/internal/gateway"
	"marcha/payments-service/internal/notification"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderConflict    = errors.New("conflicting orders share an order id")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// Update is the delta a single notification produces: the order fields to
// write and whether the status calls for a balance credit. An empty Token
// leaves the stored settlement token untouched.
type Update struct {
	OrderID string
	Status  notification.Status
	Method  string
	Token   string
	Amount  int64
	Credit  bool
}

// Applied reports what the store actually did. Credited stays false when
// the settlement record showed a prior credit for the order.
type Applied struct {
	Credited   bool
	CustomerID uuid.UUID
}

// Store applies an Update as one atomic unit: order delta, settlement-record
// check-and-mark, balance credit and ledger journal either all commit or
// none do.
type Store interface {
	Apply(ctx context.Context, upd Update) (Applied, error)
}

// Broadcaster pushes a status change to live order watchers.
type Broadcaster interface {
	BroadcastOrderUpdate(orderID, status string)
}

// Result is the reconciled event acknowledged back to the gateway.
type Result struct {
	OrderID           string              `json:"order_id"`
	CustomerID        string              `json:"customer_id"`
	TransactionStatus notification.Status `json:"transaction_status"`
	MethodPayment     string              `json:"method_payment"`
	SettlementToken   string              `json:"settlement_token,omitempty"`
	GrossAmount       int64               `json:"gross_amount"`
	Credited          bool                `json:"credited"`
}

type Service struct {
	store        Store
	hub          Broadcaster
	signatureKey string
	logger       *slog.Logger
}

// NewService wires the reconciliation entry point. hub may be nil. A
// non-empty signatureKey enables verification of the gateway signature on
// every notification.
func NewService(store Store, hub Broadcaster, signatureKey string, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		hub:          hub,
		signatureKey: signatureKey,
		logger:       logger,
	}
}

// HandleNotification processes one inbound gateway delivery end to end:
// parse, classify, then a single transactional apply. Safe to call any
// number of times with the same notification.
func (s *Service) HandleNotification(ctx context.Context, raw []byte) (*Result, error) {
	evt, err := notification.Parse(raw)
	if err != nil {
		return nil, err
	}

	if s.signatureKey != "" {
		if !gateway.ValidSignature(evt.OrderID, evt.StatusCode, evt.GrossAmountRaw, s.signatureKey, evt.SignatureKey) {
			return nil, fmt.Errorf("%w: order %s", ErrInvalidSignature, evt.OrderID)
		}
	}

	method, token, err := notification.Classify(evt)
	if err != nil {
		return nil, err
	}

	applied, err := s.store.Apply(ctx, Update{
		OrderID: evt.OrderID,
		Status:  evt.TransactionStatus,
		Method:  method,
		Token:   token,
		Amount:  evt.GrossAmount,
		Credit:  evt.TransactionStatus.Settled(),
	})
	if err != nil {
		return nil, err
	}

	if applied.Credited {
		s.logger.Info("balance credited",
			"order_id", evt.OrderID, "customer_id", applied.CustomerID, "amount", evt.GrossAmount)
	} else if evt.TransactionStatus.Settled() {
		s.logger.Info("credit already applied, order updated only", "order_id", evt.OrderID)
	}

	if s.hub != nil {
		s.hub.BroadcastOrderUpdate(evt.OrderID, string(evt.TransactionStatus))
	}

	return &Result{
		OrderID:           evt.OrderID,
		CustomerID:        applied.CustomerID.String(),
		TransactionStatus: evt.TransactionStatus,
		MethodPayment:     method,
		SettlementToken:   token,
		GrossAmount:       evt.GrossAmount,
		Credited:          applied.Credited,
	}, nil
}
