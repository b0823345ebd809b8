package notification

import "fmt"

const (
	TypeCStore       = "cstore"
	TypeGopay        = "gopay"
	TypeQRIS         = "qris"
	TypeShopeePay    = "shopeepay"
	TypeBankTransfer = "bank_transfer"
)

// Classify maps an event to the payment-method label stored on the order
// and the settlement token the customer pays against. E-wallet types carry
// no token. For bank transfers without a Permata number the first virtual
// account is authoritative.
func Classify(evt *PaymentEvent) (method, token string, err error) {
	switch evt.PaymentType {
	case TypeCStore:
		if evt.Store == "" {
			return "", "", fmt.Errorf("%w: cstore notification without store", ErrMalformedPayload)
		}
		return evt.Store, evt.PaymentCode, nil

	case TypeGopay, TypeQRIS, TypeShopeePay:
		return evt.PaymentType, "", nil

	case TypeBankTransfer:
		if evt.PermataVANumber != "" {
			return "permata", evt.PermataVANumber, nil
		}
		if len(evt.VANumbers) == 0 {
			return "", "", fmt.Errorf("%w: bank_transfer notification without va_numbers", ErrMalformedPayload)
		}
		return evt.VANumbers[0].Bank, evt.VANumbers[0].VANumber, nil

	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownPaymentType, evt.PaymentType)
	}
}
