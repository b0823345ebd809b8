package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"marcha/payments-service/internal/order"

	gw "github.com/gorilla/websocket"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub      *Hub
	orderSvc *order.Service
	logger   *slog.Logger
}

func NewHandler(hub *Hub, orderSvc *order.Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, orderSvc: orderSvc, logger: logger}
}

// ServeWS subscribes the caller to status updates for one order. The caller
// must own the order: X-User-ID has to match the order's customer.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	userID := r.Header.Get("X-User-ID")
	if orderID == "" || userID == "" {
		http.Error(w, "missing order id or X-User-ID", http.StatusBadRequest)
		return
	}

	o, err := h.orderSvc.FindByExternalID(r.Context(), orderID)
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if o.CustomerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "order_id", orderID, "err", err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		orderID: orderID,
	}

	client.hub.register <- client
	go client.writePump()
	go client.readPump()

	// Push the current status so the client does not wait for the next
	// notification to learn where the order stands.
	upd := OrderUpdate{OrderID: orderID, Status: o.Status}
	if b, err := json.Marshal(upd); err == nil {
		select {
		case client.send <- b:
		case <-time.After(1 * time.Second):
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
