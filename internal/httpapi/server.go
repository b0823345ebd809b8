package httpapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"marcha/payments-service/internal/account"
	"marcha/payments-service/internal/gateway"
	"marcha/payments-service/internal/notification"
	"marcha/payments-service/internal/order"
	"marcha/payments-service/internal/reconcile"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go/coreapi"
)

//go:embed assetlinks.json
var assetLinks []byte

// Gateway is the slice of the payment-gateway client the HTTP layer needs.
type Gateway interface {
	CreateSnapToken(orderID string, grossAmount int64, cust gateway.Customer, items []gateway.ChargeItem, finishURL string) (string, string, error)
	TransactionStatus(transactionID string) (*coreapi.TransactionStatusResponse, error)
}

type Server struct {
	orders     *order.Service
	accounts   *account.Service
	reconciler *reconcile.Service
	gateway    Gateway
	appURL     string
	validate   *validator.Validate
	logger     *slog.Logger
	mux        *http.ServeMux
}

func NewServer(orders *order.Service, accounts *account.Service, reconciler *reconcile.Service, gw Gateway, appURL string, logger *slog.Logger) *Server {
	s := &Server{
		orders:     orders,
		accounts:   accounts,
		reconciler: reconciler,
		gateway:    gw,
		appURL:     appURL,
		validate:   validator.New(),
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /charge", s.charge)
	s.mux.HandleFunc("POST /notification_handler", s.handleNotification)
	s.mux.HandleFunc("GET /transactions/{transactionID}", s.transactionDetail)
	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("POST /accounts", s.createAccount)
	s.mux.HandleFunc("GET /accounts/balance", s.balance)
	s.mux.HandleFunc("GET /start-app", s.startApp)
	s.mux.HandleFunc("GET /.well-known/assetlinks.json", s.assetLinks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// HandleFunc lets the bootstrap attach extra routes, like the websocket
// endpoint, without this package importing them.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

type chargeItem struct {
	ID       string `json:"id" validate:"required"`
	Price    int64  `json:"price" validate:"required,gt=0"`
	Quantity int32  `json:"quantity" validate:"required,gt=0"`
	Name     string `json:"name" validate:"required"`
}

type chargeCustomer struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type chargeRequest struct {
	OrderID    string         `json:"order_id" validate:"required"`
	CustomerID string         `json:"customer_id" validate:"required,uuid"`
	URL        string         `json:"url" validate:"omitempty,url"`
	Customers  chargeCustomer `json:"customers"`
	Items      []chargeItem   `json:"items" validate:"required,min=1,dive"`
}

// charge opens a checkout session: it persists a pending order and asks the
// gateway for a Snap transaction token.
func (s *Server) charge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer_id")
		return
	}

	var grossAmount int64
	items := make([]gateway.ChargeItem, 0, len(req.Items))
	for _, item := range req.Items {
		grossAmount += item.Price * int64(item.Quantity)
		items = append(items, gateway.ChargeItem{
			ID:       item.ID,
			Price:    item.Price,
			Quantity: item.Quantity,
			Name:     item.Name,
		})
	}

	o, err := s.orders.Create(r.Context(), customerID, req.OrderID, grossAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, redirectURL, err := s.gateway.CreateSnapToken(o.ExternalID, grossAmount, gateway.Customer{
		FirstName: req.Customers.FirstName,
		LastName:  req.Customers.LastName,
		Email:     req.Customers.Email,
		Phone:     req.Customers.Phone,
	}, items, req.URL)
	if err != nil {
		s.logger.Error("create snap token", "order_id", o.ExternalID, "err", err)
		writeError(w, http.StatusBadGateway, "payment gateway rejected the charge")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":        token,
		"redirect_url": redirectURL,
		"order":        o,
	})
}

// handleNotification is the reconciliation entry point for gateway
// webhooks. Client-side faults are final; store faults return 503 so the
// gateway retries, which the idempotency guard makes safe.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	result, err := s.reconciler.HandleNotification(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, notification.ErrMalformedPayload),
			errors.Is(err, notification.ErrUnknownPaymentType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, reconcile.ErrInvalidSignature):
			s.logger.Warn("rejected notification", "err", err)
			writeError(w, http.StatusForbidden, "invalid signature")
		case errors.Is(err, reconcile.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, reconcile.ErrOrderConflict):
			s.logger.Error("order id collision", "err", err)
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("reconcile notification", "err", err)
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) transactionDetail(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gateway.TransactionStatus(r.PathValue("transactionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "transaction id not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.orders.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.accounts.Create(r.Context(), userID); err != nil {
		if errors.Is(err, account.ErrAccountExists) {
			writeError(w, http.StatusConflict, "account already exists")
			return
		}
		s.logger.Error("create account", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.accounts.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("get balance", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) startApp(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.appURL, http.StatusMovedPermanently)
}

func (s *Server) assetLinks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(assetLinks)
}

func (s *Server) userID(r *http.Request) (uuid.UUID, error) {
	value := r.Header.Get("X-User-ID")
	if value == "" {
		return uuid.Nil, errors.New("missing X-User-ID header")
	}
	return uuid.Parse(value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
