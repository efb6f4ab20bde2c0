package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/cart"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/events"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/order"
	"github.com/ahinestrog/bookdist/internal/payment"
	"github.com/ahinestrog/bookdist/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

type testAPI struct {
	t       *testing.T
	handler http.Handler
	svc     Services
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := Services{
		DB:        db,
		Identity:  identity.NewService(db, time.Hour),
		Catalog:   catalog.NewService(db, events.Nop{}),
		Customers: customer.NewService(db),
		Payments:  payment.NewService(db),
		Discounts: discount.NewService(db),
		Cart:      cart.NewService(db),
		Orders:    order.NewService(db, events.Nop{}, order.Settings{DefaultCreditLimit: money.MustParse("500")}),
	}
	return &testAPI{t: t, handler: NewHandler(svc, []string{"http://shop.test"}), svc: svc}
}

func (ta *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ta.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func (ta *testAPI) staff(name string, role identity.Role) string {
	ta.t.Helper()
	ctx := context.Background()
	_, err := ta.svc.Identity.CreateUser(ctx, name, "secret1", role)
	require.NoError(ta.t, err)
	sess, err := ta.svc.Identity.Login(ctx, name, "secret1")
	require.NoError(ta.t, err)
	return sess.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.KindUnauthorized:        http.StatusUnauthorized,
		apperr.KindForbidden:           http.StatusForbidden,
		apperr.KindInvalidReference:    http.StatusNotFound,
		apperr.KindNotFound:            http.StatusNotFound,
		apperr.KindInsufficientStock:   http.StatusConflict,
		apperr.KindCreditLimitExceeded: http.StatusConflict,
		apperr.KindPriceMismatch:       http.StatusUnprocessableEntity,
		apperr.KindValidation:          http.StatusUnprocessableEntity,
		apperr.KindInternal:            http.StatusInternalServerError,
	}
	for k, want := range tests {
		assert.Equal(t, want, StatusFor(k), k.String())
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}

func TestHealthAndAuth(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(http.MethodPost, "/api/auth/register", "", credentials{Username: "reader", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[identity.Session](t, rec)
	assert.Equal(t, identity.RoleCustomer, sess.Principal.Role)

	rec = ta.do(http.MethodPost, "/api/auth/register", "", credentials{Username: "reader", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ta.do(http.MethodPost, "/api/auth/register", "", credentials{Username: "x", Password: "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = ta.do(http.MethodPost, "/api/auth/login", "", credentials{Username: "reader", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ta.do(http.MethodPost, "/api/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(http.MethodGet, "/api/cart", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ta.do(http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ta.do(http.MethodGet, "/api/cart", sess.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ta.do(http.MethodPost, "/api/auth/logout", sess.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.do(http.MethodGet, "/api/cart", sess.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ta := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	req.Header.Set("Origin", "http://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://shop.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStorefrontCheckoutFlow(t *testing.T) {
	ta := newTestAPI(t)
	admin := ta.staff("admin", identity.RoleAdmin)

	rec := ta.do(http.MethodPost, "/api/books", admin, map[string]any{
		"title": "Dune", "author": "Herbert", "price": "20.00", "stock_qty": 2, "reorder_level": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decode[catalog.Book](t, rec)

	rec = ta.do(http.MethodPost, "/api/discounts", admin, map[string]any{"name": "all", "percentage": "10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/books?q=dune", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[catalog.Page](t, rec)
	assert.Equal(t, int64(1), page.TotalItems)

	rec = ta.do(http.MethodPost, "/api/auth/register", "", credentials{Username: "reader", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	reader := decode[identity.Session](t, rec).Token

	rec = ta.do(http.MethodPost, "/api/cart/checkout", reader, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart is empty")

	rec = ta.do(http.MethodPost, "/api/cart/items", reader, cartItemInput{BookID: 999, Qty: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(http.MethodPost, "/api/cart/items", reader, cartItemInput{BookID: book.ID, Qty: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ta.do(http.MethodPost, "/api/cart/checkout", reader, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodPut, "/api/cart/items/"+itoa(book.ID), reader, cartItemInput{Qty: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ta.do(http.MethodPost, "/api/cart/checkout", reader, map[string]string{"notes": "gift"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[order.Order](t, rec)
	assert.Equal(t, money.MustParse("40.00"), o.Subtotal)
	assert.Equal(t, money.MustParse("4.00"), o.Discount)
	assert.Equal(t, money.MustParse("36.00"), o.Total)
	assert.Equal(t, "gift", o.Notes)

	rec = ta.do(http.MethodGet, "/api/orders/"+itoa(o.ID), reader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[order.Order](t, rec)
	assert.Equal(t, o.Total, again.Total)

	rec = ta.do(http.MethodGet, "/api/books/low-stock", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dune")

	rec = ta.do(http.MethodPatch, "/api/orders/"+itoa(o.ID)+"/status", reader, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ta.do(http.MethodPatch, "/api/orders/"+itoa(o.ID)+"/status", admin, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/books/"+itoa(book.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[catalog.Book](t, rec).StockQty)
}

func TestStaffOrderFlow(t *testing.T) {
	ta := newTestAPI(t)
	admin := ta.staff("admin", identity.RoleAdmin)
	sam := ta.staff("sam", identity.RoleSalesman)

	rec := ta.do(http.MethodPost, "/api/books", admin, map[string]any{"title": "Emma", "author": "Austen", "price": 8, "stock_qty": 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	book := decode[catalog.Book](t, rec)

	rec = ta.do(http.MethodPost, "/api/books", sam, map[string]any{"title": "x", "author": "y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(http.MethodPost, "/api/customers", sam, map[string]any{"name": "Corner Books", "credit_limit": "300"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cu := decode[customer.Customer](t, rec)

	line := map[string]any{"book_id": book.ID, "qty": 2, "unit_price": "8.00", "line_total": "16.05"}
	rec = ta.do(http.MethodPost, "/api/orders", sam, map[string]any{"customer_id": cu.ID, "items": []any{line}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	line["line_total"] = "16.00"
	rec = ta.do(http.MethodPost, "/api/orders", sam, map[string]any{
		"customer_id": cu.ID, "items": []any{line}, "discount_percentage": "5", "tax": "1.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[order.Order](t, rec)
	assert.Equal(t, money.MustParse("16.00"), o.Subtotal)
	assert.Equal(t, money.MustParse("0.80"), o.Discount)
	assert.Equal(t, money.MustParse("16.20"), o.Total)
	assert.Equal(t, "sam", o.Creator.Username)

	rec = ta.do(http.MethodPost, "/api/orders", sam, map[string]any{"customer_id": 999, "items": []any{line}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(http.MethodPost, "/api/payments", sam, map[string]any{"customer_id": cu.ID, "amount": "10", "method": "cash"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/customers/"+itoa(cu.ID), sam, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal struct {
		Outstanding money.Money `json:"outstanding"`
		Available   money.Money `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, money.MustParse("6.20"), bal.Outstanding)
	assert.Equal(t, money.MustParse("293.80"), bal.Available)

	rec = ta.do(http.MethodGet, "/api/orders", sam, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), o.OrderNumber)

	rec = ta.do(http.MethodPatch, "/api/orders/"+itoa(o.ID)+"/status", sam, map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = ta.do(http.MethodGet, "/api/orders/abc", sam, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestCheckout_ChunkedBody(t *testing.T) {
	ta := newTestAPI(t)
	b := &catalog.Book{Title: "Emma", Author: "Austen", Price: money.MustParse("12.00"), StockQty: 5, Active: true}
	require.NoError(t, catalog.NewRepository(ta.svc.DB).Create(context.Background(), b))

	rec := ta.do(http.MethodPost, "/api/auth/register", "", credentials{Username: "reader", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	reader := decode[identity.Session](t, rec).Token

	checkout := func(body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/checkout", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+reader)
		rec := httptest.NewRecorder()
		ta.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = ta.do(http.MethodPost, "/api/cart/items", reader, cartItemInput{BookID: b.ID, Qty: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// an unsized reader leaves ContentLength at -1, as with chunked encoding
	rec = checkout(io.NopCloser(strings.NewReader(`{"notes":"leave with the porter"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "leave with the porter", decode[order.Order](t, rec).Notes)

	rec = ta.do(http.MethodPost, "/api/cart/items", reader, cartItemInput{BookID: b.ID, Qty: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = checkout(io.NopCloser(strings.NewReader("")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, decode[order.Order](t, rec).Notes)

	rec = checkout(io.NopCloser(strings.NewReader(`{"notes":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
