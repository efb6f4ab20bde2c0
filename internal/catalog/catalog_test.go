package catalog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return m.Called(ctx, routingKey, payload).Error(0)
}

var (
	admin    = identity.PolicyFor(&identity.Principal{UserID: 1, Role: identity.RoleAdmin})
	salesman = identity.PolicyFor(&identity.Principal{UserID: 2, Role: identity.RoleSalesman})
	reader   = identity.PolicyFor(&identity.Principal{UserID: 3, Role: identity.RoleCustomer})
)

func newTestService(t *testing.T) (*Service, *mockPublisher, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return NewService(db, pub), pub, db
}

func TestCreateUpdateGet(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, admin, BookInput{Title: " Dune ", Author: "Herbert", Price: money.MustParse("9.99"), StockQty: 4, ReorderLevel: 2})
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	assert.True(t, b.Active)
	pub.AssertCalled(t, "Publish", mock.Anything, events.RKBookCreated, events.BookChanged{BookID: b.ID})

	_, err = svc.Create(ctx, salesman, BookInput{Title: "x", Author: "y"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Create(ctx, admin, BookInput{Title: "", Author: "y"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, identity.Policy{}, BookInput{Title: "x", Author: "y"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	off := false
	up, err := svc.Update(ctx, admin, b.ID, BookInput{Title: "Dune", Author: "Frank Herbert", Price: money.MustParse("11"), StockQty: 99, Active: &off})
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("11"), up.Price)
	assert.Equal(t, 4, up.StockQty, "update never touches stock")
	assert.False(t, up.Active)

	_, err = svc.Get(ctx, reader, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, err := svc.Get(ctx, salesman, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", got.Author)

	_, err = svc.Update(ctx, admin, 999, BookInput{Title: "a", Author: "b"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_PagingAndVisibility(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for _, title := range []string{"Alpha", "Beta", "Gamma", "Alphabet"} {
		_, err := svc.Create(ctx, admin, BookInput{Title: title, Author: "A", Price: 100})
		require.NoError(t, err)
	}
	off := false
	_, err := svc.Create(ctx, admin, BookInput{Title: "Hidden", Author: "A", Active: &off})
	require.NoError(t, err)

	page, err := svc.List(ctx, reader, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	page, err = svc.List(ctx, admin, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalItems)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = svc.List(ctx, reader, "ALPHA", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalItems)
}

func TestReceive(t *testing.T) {
	svc, pub, db := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, admin, BookInput{Title: "Emma", Author: "Austen", Price: 500, StockQty: 1, ReorderLevel: 3})
	require.NoError(t, err)

	low, err := svc.LowStock(ctx, salesman)
	require.NoError(t, err)
	require.Len(t, low, 1)

	got, err := svc.Receive(ctx, admin, b.ID, 5, "supplier")
	require.NoError(t, err)
	assert.Equal(t, 6, got.StockQty)
	pub.AssertCalled(t, "Publish", mock.Anything, events.RKStockReceived, events.StockReceived{BookID: b.ID, Qty: 5, StockQty: 6})

	var receipts int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stock_receipts WHERE book_id=?`, b.ID).Scan(&receipts))
	assert.Equal(t, 1, receipts)

	low, err = svc.LowStock(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, low)

	_, err = svc.Receive(ctx, admin, b.ID, 0, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Receive(ctx, admin, 999, 1, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
	_, err = svc.Receive(ctx, salesman, b.ID, 1, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.LowStock(ctx, reader)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDecrementStock_Conditional(t *testing.T) {
	_, _, db := newTestService(t)
	ctx := context.Background()
	repo := NewRepository(db)
	b := &Book{Title: "T", Author: "A", Price: 100, StockQty: 2, Active: true}
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.DecrementStock(ctx, b.ID, 2))
	assert.ErrorIs(t, repo.DecrementStock(ctx, b.ID, 1), ErrStockShortage)
	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, got.StockQty)
}

func TestReorderWatcher(t *testing.T) {
	_, _, db := newTestService(t)
	ctx := context.Background()
	repo := NewRepository(db)
	low := &Book{Title: "Low", Author: "A", StockQty: 1, ReorderLevel: 2, Active: true}
	ok := &Book{Title: "Ok", Author: "A", StockQty: 10, ReorderLevel: 2, Active: true}
	require.NoError(t, repo.Create(ctx, low))
	require.NoError(t, repo.Create(ctx, ok))

	w := NewReorderWatcher(db)
	got, err := w.Check(ctx, []int64{low.ID, ok.ID, low.ID, 999})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, low.ID, got[0].ID)

	payload, err := json.Marshal(events.OrderCreated{OrderID: 1, Items: []events.OrderItemEvt{{BookID: low.ID, Qty: 1}}})
	require.NoError(t, err)
	assert.NoError(t, w.HandleOrderCreated(ctx, events.Delivery{Type: events.RKOrderCreated, Payload: payload}))
	assert.Error(t, w.HandleOrderCreated(ctx, events.Delivery{Type: events.RKOrderCreated, Payload: []byte(`"x"`)}))
}
