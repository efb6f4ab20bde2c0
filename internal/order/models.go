// Package order prices, commits and tracks bookstore orders. Staff orders and
// storefront checkouts share one pricing engine and one transaction shape.
package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/money"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions lists where each status may go next. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

type Order struct {
	ID                 int64            `json:"id"`
	OrderNumber        string           `json:"order_number"`
	CustomerID         int64            `json:"customer_id"`
	CreatedBy          int64            `json:"created_by"`
	Status             Status           `json:"status"`
	Subtotal           money.Money      `json:"subtotal"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	Discount           money.Money      `json:"discount"`
	Tax                money.Money      `json:"tax"`
	Total              money.Money      `json:"total"`
	Notes              string           `json:"notes"`
	CreatedUnix        int64            `json:"created_unix"`
	UpdatedUnix        int64            `json:"updated_unix"`
	Items              []OrderItem      `json:"items"`
	Customer           *CustomerSummary `json:"customer,omitempty"`
	Creator            *UserSummary     `json:"creator,omitempty"`
}

// OrderItem snapshots title and price at order time; later catalog edits do
// not touch it.
type OrderItem struct {
	ID        int64       `json:"id"`
	OrderID   int64       `json:"order_id"`
	BookID    int64       `json:"book_id"`
	Title     string      `json:"title"`
	Qty       int         `json:"qty"`
	UnitPrice money.Money `json:"unit_price"`
	LineTotal money.Money `json:"line_total"`
}

type CustomerSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	UserID     *int64 `json:"user_id,omitempty"`
	SalesmanID *int64 `json:"salesman_id,omitempty"`
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
