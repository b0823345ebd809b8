package notification

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		evt        PaymentEvent
		wantMethod string
		wantToken  string
	}{
		{
			name:       "cstore uses the store name and payment code",
			evt:        PaymentEvent{PaymentType: TypeCStore, Store: "alfamart", PaymentCode: "12345"},
			wantMethod: "alfamart",
			wantToken:  "12345",
		},
		{
			name:       "gopay carries no token",
			evt:        PaymentEvent{PaymentType: TypeGopay},
			wantMethod: "gopay",
		},
		{
			name:       "qris carries no token",
			evt:        PaymentEvent{PaymentType: TypeQRIS},
			wantMethod: "qris",
		},
		{
			name:       "shopeepay carries no token",
			evt:        PaymentEvent{PaymentType: TypeShopeePay},
			wantMethod: "shopeepay",
		},
		{
			name:       "permata virtual account wins over the list",
			evt:        PaymentEvent{PaymentType: TypeBankTransfer, PermataVANumber: "887766", VANumbers: []VANumber{{Bank: "bca", VANumber: "111"}}},
			wantMethod: "permata",
			wantToken:  "887766",
		},
		{
			name:       "first virtual account is authoritative",
			evt:        PaymentEvent{PaymentType: TypeBankTransfer, VANumbers: []VANumber{{Bank: "bca", VANumber: "111"}, {Bank: "bni", VANumber: "222"}}},
			wantMethod: "bca",
			wantToken:  "111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, token, err := Classify(&tt.evt)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if method != tt.wantMethod {
				t.Errorf("method = %q, want %q", method, tt.wantMethod)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}

	t.Run("unknown payment type is a reported error", func(t *testing.T) {
		_, _, err := Classify(&PaymentEvent{PaymentType: "creditcard_v2"})
		if !errors.Is(err, ErrUnknownPaymentType) {
			t.Errorf("err = %v, want ErrUnknownPaymentType", err)
		}
	})

	t.Run("bank transfer without any virtual account", func(t *testing.T) {
		_, _, err := Classify(&PaymentEvent{PaymentType: TypeBankTransfer})
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("err = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("cstore without store name", func(t *testing.T) {
		_, _, err := Classify(&PaymentEvent{PaymentType: TypeCStore, PaymentCode: "12345"})
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("err = %v, want ErrMalformedPayload", err)
		}
	})
}
