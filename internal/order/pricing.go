package order

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

// priceTolerance is the largest accepted gap between a declared line total and qty × unit price.
const priceTolerance = money.Money(1)

var hundred = decimal.NewFromInt(100)

// Line is one requested line. Staff orders declare UnitPrice and LineTotal;
// checkout lines only carry BookID and Qty.
type Line struct {
	BookID    int64       `json:"book_id"`
	Qty       int         `json:"qty"`
	UnitPrice money.Money `json:"unit_price"`
	LineTotal money.Money `json:"line_total"`
}

// Quote is a fully priced order that has not been stored yet.
type Quote struct {
	Items              []OrderItem
	Subtotal           money.Money
	DiscountPercentage decimal.Decimal
	Discount           money.Money
	Tax                money.Money
	Total              money.Money
}

func subtotalOf(items []OrderItem) money.Money {
	var sum money.Money
	for _, it := range items {
		sum += it.LineTotal
	}
	return sum
}

func newQuote(items []OrderItem, pct decimal.Decimal) Quote {
	q := Quote{Items: items, Subtotal: subtotalOf(items), DiscountPercentage: pct}
	q.Discount = q.Subtotal.Percent(pct)
	q.Total = q.Subtotal - q.Discount
	return q
}

// setTax fixes the total. Lines, discount and tax are never negative, so the
// total is not either.
func (q *Quote) setTax(tax money.Money) {
	q.Tax = tax
	q.Total = q.Subtotal - q.Discount + tax
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// engine validates lines against the catalog as seen by one transaction.
type engine struct {
	books *catalog.Repository
}

func newEngine(q store.Querier) engine { return engine{books: catalog.NewRepository(q)} }

// price checks every line and returns the items to store. With declared set the
// client's prices are kept once they are self-consistent; otherwise prices come
// from the catalog. Quantities for the same book are summed before the stock check.
func (e engine) price(ctx context.Context, lines []Line, declared bool) ([]OrderItem, error) {
	if len(lines) == 0 {
		return nil, apperr.Invalid("order has no items")
	}
	requested := make(map[int64]int, len(lines))
	items := make([]OrderItem, 0, len(lines))
	var subtotal money.Money
	for i, l := range lines {
		if l.Qty <= 0 {
			return nil, apperr.Invalid("line %d: quantity must be positive", i+1)
		}
		b, err := e.books.Get(ctx, l.BookID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !b.Active) {
			return nil, apperr.InvalidReference("line %d: book %d not found", i+1, l.BookID)
		}
		if err != nil {
			return nil, err
		}

		requested[b.ID] += l.Qty
		if b.StockQty < requested[b.ID] {
			return nil, apperr.New(apperr.KindInsufficientStock,
				"insufficient stock for %q: requested %d, available %d", b.Title, requested[b.ID], b.StockQty)
		}

		it := OrderItem{BookID: b.ID, Title: b.Title, Qty: l.Qty}
		if declared {
			if l.UnitPrice < 0 || l.LineTotal < 0 {
				return nil, apperr.Invalid("line %d: unit price and line total cannot be negative", i+1)
			}
			if !l.UnitPrice.InRange() || !l.LineTotal.InRange() {
				return nil, apperr.Invalid("line %d: amount is over the maximum of %s", i+1, money.Max)
			}
			want, ok := l.UnitPrice.MulChecked(l.Qty)
			if !ok {
				return nil, apperr.Invalid("line %d: %d × %s is over the maximum of %s", i+1, l.Qty, l.UnitPrice, money.Max)
			}
			if l.LineTotal.Sub(want).Abs() > priceTolerance {
				return nil, apperr.New(apperr.KindPriceMismatch,
					"line %d: line total %s does not match %d × %s = %s",
					i+1, l.LineTotal, l.Qty, l.UnitPrice, want)
			}
			it.UnitPrice, it.LineTotal = l.UnitPrice, l.LineTotal
		} else {
			lt, ok := b.Price.MulChecked(l.Qty)
			if !ok {
				return nil, apperr.Invalid("line %d: %d × %s is over the maximum of %s", i+1, l.Qty, b.Price, money.Max)
			}
			it.UnitPrice, it.LineTotal = b.Price, lt
		}
		if subtotal += it.LineTotal; subtotal > money.Max {
			return nil, apperr.Invalid("order subtotal is over the maximum of %s", money.Max)
		}
		items = append(items, it)
	}
	return items, nil
}

// commitStock takes the ordered quantities out of stock. Books are touched in
// ascending id order so concurrent orders lock rows in the same order.
func (e engine) commitStock(ctx context.Context, items []OrderItem) error {
	qty := map[int64]int{}
	for _, it := range items {
		qty[it.BookID] += it.Qty
	}
	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		err := e.books.DecrementStock(ctx, id, qty[id])
		if errors.Is(err, catalog.ErrStockShortage) {
			return apperr.Wrap(apperr.KindInsufficientStock, err, "insufficient stock for book %d", id)
		}
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	return nil
}

// restoreStock puts a cancelled order's quantities back.
func (e engine) restoreStock(ctx context.Context, items []OrderItem) error {
	for _, it := range items {
		if err := e.books.IncrementStock(ctx, it.BookID, it.Qty); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}
