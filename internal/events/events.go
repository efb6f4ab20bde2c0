// Package events publishes domain events after their transaction commits.
package events

import "context"

// Routing keys on the topic exchange.
const (
	RKOrderCreated       = "order.created"
	RKOrderStatusChanged = "order.status_changed"
	RKStockReceived      = "stock.received"
	RKBookCreated        = "catalog.book.created"
	RKBookUpdated        = "catalog.book.updated"
)

// Publisher sends one event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

type OrderCreated struct {
	OrderID     int64          `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	CustomerID  int64          `json:"customer_id"`
	CreatedBy   int64          `json:"created_by"`
	Channel     string         `json:"channel"` // "staff" o "checkout"
	Items       []OrderItemEvt `json:"items"`
	TotalCents  int64          `json:"total_cents"`
}

type OrderItemEvt struct {
	BookID    int64 `json:"book_id"`
	Qty       int   `json:"qty"`
	UnitCents int64 `json:"unit_cents"`
	LineCents int64 `json:"line_cents"`
}

type OrderStatusChanged struct {
	OrderID int64  `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	By      int64  `json:"by"`
}

type StockReceived struct {
	BookID   int64 `json:"book_id"`
	Qty      int   `json:"qty"`
	StockQty int   `json:"stock_qty"`
}

type BookChanged struct {
	BookID int64 `json:"id"`
}
