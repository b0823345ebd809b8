package contracts

import "time"

// ReconciledEvent is published on the reconciled-payments exchange after a
// gateway notification has been applied to the order and, when due, the
// customer balance.
type ReconciledEvent struct {
	EventID           string    `json:"event_id"`
	OrderID           string    `json:"order_id"`
	CustomerID        string    `json:"customer_id"`
	TransactionStatus string    `json:"transaction_status"`
	MethodPayment     string    `json:"method_payment"`
	SettlementToken   string    `json:"settlement_token,omitempty"`
	GrossAmount       int64     `json:"gross_amount"`
	Credited          bool      `json:"credited"`
	ReconciledAt      time.Time `json:"reconciled_at"`
}
