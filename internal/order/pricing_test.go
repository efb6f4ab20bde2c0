package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/money"
)

func TestCheckCredit(t *testing.T) {
	limit := money.MustParse("100")
	exp := customer.Exposure{OrderTotal: money.MustParse("80")}

	err := CheckCredit(exp, limit, money.MustParse("25"))
	require.ErrorIs(t, err, apperr.ErrCreditLimitExceeded)
	assert.Equal(t,
		"credit limit exceeded: outstanding $80.00 plus order total $25.00 is over the limit of $100.00",
		err.Error())

	assert.NoError(t, CheckCredit(exp, limit, money.MustParse("15")))
	assert.NoError(t, CheckCredit(exp, limit, money.MustParse("20")), "reaching the limit exactly is allowed")

	exp.PaymentTotal = money.MustParse("30")
	assert.NoError(t, CheckCredit(exp, limit, money.MustParse("50")))
}

func TestQuote_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "lines")
		items := make([]OrderItem, n)
		var sum money.Money
		for i := range items {
			unit := money.Cents(rapid.Int64Range(0, 100_000).Draw(t, "unit"))
			qty := rapid.IntRange(1, 50).Draw(t, "qty")
			items[i] = OrderItem{Qty: qty, UnitPrice: unit, LineTotal: unit.Mul(qty)}
			sum += items[i].LineTotal
		}
		pct := decimal.New(rapid.Int64Range(0, 10_000).Draw(t, "pct_bp"), -2)
		tax := money.Cents(rapid.Int64Range(0, 50_000).Draw(t, "tax"))

		q := newQuote(items, pct)
		q.setTax(tax)

		if q.Subtotal != sum {
			t.Fatalf("subtotal %s != sum of lines %s", q.Subtotal, sum)
		}
		if want := money.FromDecimal(sum.Decimal().Mul(pct).Div(hundred)); q.Discount != want {
			t.Fatalf("discount %s, want %s", q.Discount, want)
		}
		if q.Discount < 0 || q.Discount > q.Subtotal {
			t.Fatalf("discount %s outside [0, %s]", q.Discount, q.Subtotal)
		}
		if q.Total != q.Subtotal-q.Discount+q.Tax {
			t.Fatalf("total %s != %s - %s + %s", q.Total, q.Subtotal, q.Discount, q.Tax)
		}
	})
}

func TestStaffOrder_StockProperty(t *testing.T) {
	f := newFixture(t)
	c := f.customer("Shop", "0", f.salesman, nil)

	rapid.Check(t, func(rt *rapid.T) {
		stock := rapid.IntRange(0, 20).Draw(rt, "stock")
		b := f.book("Prop", "4.25", stock)

		n := rapid.IntRange(1, 4).Draw(rt, "lines")
		lines := make([]Line, n)
		total := 0
		for i := range lines {
			qty := rapid.IntRange(1, 8).Draw(rt, "qty")
			total += qty
			lines[i] = line(b, qty)
		}

		_, err := f.svc.CreateOrder(f.ctx, f.salesman, CreateOrderInput{CustomerID: c.ID, Items: lines})
		got := f.stock(b.ID)
		if total > stock {
			if !errors.Is(err, apperr.ErrInsufficientStock) {
				rt.Fatalf("order of %d from stock %d: got %v, want insufficient stock", total, stock, err)
			}
			if got != stock {
				rt.Fatalf("rejected order changed stock from %d to %d", stock, got)
			}
			return
		}
		if err != nil {
			rt.Fatalf("order of %d from stock %d failed: %v", total, stock, err)
		}
		if got != stock-total {
			rt.Fatalf("stock %d, want %d", got, stock-total)
		}
	})
}

func TestEnginePrice_CatalogPrices(t *testing.T) {
	f := newFixture(t)
	b := f.book("Dune", "12.34", 5)

	items, err := newEngine(f.db).price(f.ctx, []Line{{BookID: b.ID, Qty: 3, UnitPrice: 1, LineTotal: 1}}, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, money.MustParse("12.34"), items[0].UnitPrice)
	assert.Equal(t, money.MustParse("37.02"), items[0].LineTotal)

	err = newEngine(f.db).commitStock(f.ctx, []OrderItem{{BookID: b.ID, Qty: 6}})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.ErrorIs(t, err, catalog.ErrStockShortage)
	assert.Equal(t, 5, f.stock(b.ID))
}
