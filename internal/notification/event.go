// Package notification turns raw Midtrans webhook payloads into typed
// payment events and derives the payment method shown on the order.
package notification

import "errors"

var (
	ErrMalformedPayload   = errors.New("malformed notification payload")
	ErrUnknownPaymentType = errors.New("unknown payment type")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSettlement Status = "settlement"
	StatusCapture    Status = "capture"
	StatusDeny       Status = "deny"
	StatusCancel     Status = "cancel"
	StatusExpire     Status = "expire"
	StatusRefund     Status = "refund"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSettlement, StatusCapture,
		StatusDeny, StatusCancel, StatusExpire, StatusRefund:
		return true
	}
	return false
}

// Settled reports whether the status means funds were captured and the
// customer balance is due a credit.
func (s Status) Settled() bool {
	return s == StatusSettlement || s == StatusCapture
}

type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// PaymentEvent is the canonical form of a gateway notification. Exactly one
// settlement-token source is populated per payment type: PaymentCode for
// cstore, PermataVANumber or VANumbers[0] for bank transfers, none for the
// e-wallet types.
type PaymentEvent struct {
	OrderID           string
	TransactionStatus Status
	PaymentType       string
	GrossAmount       int64

	// GrossAmountRaw and StatusCode are kept verbatim because the gateway
	// signature is computed over the original strings, not parsed values.
	GrossAmountRaw string
	StatusCode     string
	SignatureKey   string

	Store           string
	PaymentCode     string
	PermataVANumber string
	VANumbers       []VANumber
}
