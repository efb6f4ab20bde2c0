package catalog

import "github.com/ahinestrog/bookdist/internal/money"

type Book struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Author       string      `json:"author"`
	Price        money.Money `json:"price"`
	StockQty     int         `json:"stock_qty"`
	ReorderLevel int         `json:"reorder_level"`
	Active       bool        `json:"active"`
	CreatedUnix  int64       `json:"created_unix"`
	UpdatedUnix  int64       `json:"updated_unix"`
}

// NeedsReorder reports whether stock has fallen to the reorder level.
func (b *Book) NeedsReorder() bool { return b.StockQty <= b.ReorderLevel }

// Receipt is an inbound inventory event.
type Receipt struct {
	ID          int64  `json:"id"`
	BookID      int64  `json:"book_id"`
	Qty         int    `json:"qty"`
	Note        string `json:"note"`
	ReceivedBy  int64  `json:"received_by"`
	CreatedUnix int64  `json:"created_unix"`
}

type ListFilter struct {
	Query      string
	ActiveOnly bool
	Limit      int
	Offset     int
}
