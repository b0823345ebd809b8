package order

import "time"

// Order is the persisted checkout record. ExternalID is the gateway-facing
// business order id the reconciler matches notifications against; ID is the
// internal document key.
type Order struct {
	ID              string    `json:"id"`
	ExternalID      string    `json:"order_id"`
	CustomerID      string    `json:"customer_id"`
	Amount          int64     `json:"amount"`
	Status          string    `json:"status"`
	MethodPayment   string    `json:"method_payment,omitempty"`
	SettlementToken string    `json:"settlement_token,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const StatusPending = "pending"
