package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marcha/payments-service/internal/gateway"
	"marcha/payments-service/internal/reconcile"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go/coreapi"
)

// stubStore knows a single order and optionally fails every apply.
type stubStore struct {
	orderID    string
	customerID uuid.UUID
	failWith   error
	credited   bool
}

func (s *stubStore) Apply(_ context.Context, upd reconcile.Update) (reconcile.Applied, error) {
	if s.failWith != nil {
		return reconcile.Applied{}, s.failWith
	}
	if upd.OrderID != s.orderID {
		return reconcile.Applied{}, fmt.Errorf("%w: %s", reconcile.ErrOrderNotFound, upd.OrderID)
	}
	applied := reconcile.Applied{CustomerID: s.customerID}
	if upd.Credit && !s.credited {
		s.credited = true
		applied.Credited = true
	}
	return applied, nil
}

type stubGateway struct{}

func (stubGateway) CreateSnapToken(string, int64, gateway.Customer, []gateway.ChargeItem, string) (string, string, error) {
	return "tok", "https://app.sandbox.midtrans.com/snap/v4/redirection/tok", nil
}

func (stubGateway) TransactionStatus(string) (*coreapi.TransactionStatusResponse, error) {
	return nil, errors.New("not found")
}

func newTestServer(store reconcile.Store, signatureKey string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reconciler := reconcile.NewService(store, nil, signatureKey, logger)
	return NewServer(nil, nil, reconciler, stubGateway{}, "https://marchaa.vercel.app/", logger)
}

func postNotification(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/notification_handler", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNotificationHandler(t *testing.T) {
	store := &stubStore{orderID: "ORD-1", customerID: uuid.New()}
	srv := newTestServer(store, "")

	t.Run("settlement acknowledged with the reconciled event", func(t *testing.T) {
		rec := postNotification(t, srv,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"qris","gross_amount":"50000.00"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		var res reconcile.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !res.Credited || res.MethodPayment != "qris" || res.GrossAmount != 50000 {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("duplicate delivery still succeeds without a second credit", func(t *testing.T) {
		rec := postNotification(t, srv,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"qris","gross_amount":"50000.00"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var res reconcile.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if res.Credited {
			t.Error("retry reported a second credit")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		rec := postNotification(t, srv, `{"transaction_status":"settlement"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown payment type", func(t *testing.T) {
		rec := postNotification(t, srv,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"creditcard_v2","gross_amount":"1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("order not found", func(t *testing.T) {
		rec := postNotification(t, srv,
			`{"order_id":"ORD-MISSING","transaction_status":"settlement","payment_type":"qris","gross_amount":"1"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("store failure reported as retryable", func(t *testing.T) {
		failing := newTestServer(&stubStore{failWith: fmt.Errorf("%w: connection reset", reconcile.ErrStoreUnavailable)}, "")
		rec := postNotification(t, failing,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"qris","gross_amount":"1"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("order id collision", func(t *testing.T) {
		colliding := newTestServer(&stubStore{failWith: fmt.Errorf("%w: ORD-1", reconcile.ErrOrderConflict)}, "")
		rec := postNotification(t, colliding,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"qris","gross_amount":"1"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("missing signature rejected when verification is on", func(t *testing.T) {
		verifying := newTestServer(&stubStore{orderID: "ORD-1", customerID: uuid.New()}, "server-key")
		rec := postNotification(t, verifying,
			`{"order_id":"ORD-1","transaction_status":"settlement","payment_type":"qris","gross_amount":"1"}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestStartAppRedirect(t *testing.T) {
	srv := newTestServer(&stubStore{}, "")
	req := httptest.NewRequest(http.MethodGet, "/start-app", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://marchaa.vercel.app/" {
		t.Errorf("Location = %q", loc)
	}
}

func TestAssetLinks(t *testing.T) {
	srv := newTestServer(&stubStore{}, "")
	req := httptest.NewRequest(http.MethodGet, "/.well-known/assetlinks.json", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var links []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &links); err != nil {
		t.Fatalf("assetlinks is not valid JSON: %v", err)
	}
	if len(links) == 0 {
		t.Error("assetlinks document is empty")
	}
}
