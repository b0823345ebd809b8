package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse validates a raw webhook body and normalizes it into a PaymentEvent.
// Any missing or wrongly shaped required field fails with
// ErrMalformedPayload.
func Parse(raw []byte) (*PaymentEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	evt := &PaymentEvent{}

	var err error
	if evt.OrderID, err = requireString(payload, "order_id"); err != nil {
		return nil, err
	}
	status, err := requireString(payload, "transaction_status")
	if err != nil {
		return nil, err
	}
	evt.TransactionStatus = Status(status)
	if !evt.TransactionStatus.Valid() {
		return nil, fmt.Errorf("%w: unrecognized transaction_status %q", ErrMalformedPayload, status)
	}
	if evt.PaymentType, err = requireString(payload, "payment_type"); err != nil {
		return nil, err
	}

	amount, ok := payload["gross_amount"]
	if !ok {
		return nil, fmt.Errorf("%w: missing gross_amount", ErrMalformedPayload)
	}
	if evt.GrossAmount, evt.GrossAmountRaw, err = parseAmount(amount); err != nil {
		return nil, err
	}

	evt.StatusCode = optionalString(payload, "status_code")
	evt.SignatureKey = optionalString(payload, "signature_key")
	evt.Store = optionalString(payload, "store")
	evt.PaymentCode = optionalString(payload, "payment_code")
	evt.PermataVANumber = optionalString(payload, "permata_va_number")

	if list, ok := payload["va_numbers"]; ok {
		if evt.VANumbers, err = parseVANumbers(list); err != nil {
			return nil, err
		}
	}

	return evt, nil
}

// parseAmount accepts the amount as a decimal string (Midtrans sends
// "50000.00") or a bare number. The fractional part is dropped; the gateway
// reports IDR with a zero fraction, so nothing of value is lost.
func parseAmount(v any) (int64, string, error) {
	var raw string
	switch a := v.(type) {
	case string:
		raw = a
	case json.Number:
		raw = a.String()
	default:
		return 0, "", fmt.Errorf("%w: gross_amount must be a string or number", ErrMalformedPayload)
	}

	whole := raw
	if i := strings.IndexByte(whole, '.'); i >= 0 {
		whole = whole[:i]
	}
	amount, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: gross_amount %q is not numeric", ErrMalformedPayload, raw)
	}
	if amount < 0 {
		return 0, "", fmt.Errorf("%w: gross_amount %q is negative", ErrMalformedPayload, raw)
	}
	return amount, raw, nil
}

func parseVANumbers(v any) ([]VANumber, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: va_numbers must be a list", ErrMalformedPayload)
	}
	out := make([]VANumber, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: va_numbers entry must be an object", ErrMalformedPayload)
		}
		bank, _ := m["bank"].(string)
		number, _ := m["va_number"].(string)
		if bank == "" || number == "" {
			return nil, fmt.Errorf("%w: va_numbers entry missing bank or va_number", ErrMalformedPayload)
		}
		out = append(out, VANumber{Bank: bank, VANumber: number})
	}
	return out, nil
}

func requireString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrMalformedPayload, key)
	}
	return s, nil
}

func optionalString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
