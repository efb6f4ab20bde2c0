package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/order"
	"github.com/ahinestrog/bookdist/internal/payment"
)

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := a.Identity.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *api) register(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := a.Identity.Register(ctx, in.Username, in.Password); err != nil {
		writeError(c, err)
		return
	}
	sess, err := a.Identity.Login(ctx, in.Username, in.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (a *api) logout(c *gin.Context) {
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		if err := a.Identity.Logout(c.Request.Context(), token); err != nil {
			writeError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

// ---- catalog ----

func (a *api) listBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	res, err := a.Catalog.List(c.Request.Context(), policy(c), c.Query("q"), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *api) getBook(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	b, err := a.Catalog.Get(c.Request.Context(), policy(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a *api) createBook(c *gin.Context) {
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := a.Catalog.Create(c.Request.Context(), policy(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (a *api) updateBook(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := a.Catalog.Update(c.Request.Context(), policy(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a *api) receiveStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Qty  int    `json:"qty"`
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := a.Catalog.Receive(c.Request.Context(), policy(c), id, in.Qty, in.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a *api) lowStock(c *gin.Context) {
	books, err := a.Catalog.LowStock(c.Request.Context(), policy(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": books})
}

// ---- customers & payments ----

func (a *api) listCustomers(c *gin.Context) {
	list, err := a.Customers.List(c.Request.Context(), policy(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (a *api) createCustomer(c *gin.Context) {
	var in customer.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cu, err := a.Customers.Create(c.Request.Context(), policy(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cu)
}

func (a *api) getCustomer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	cu, exp, err := a.Customers.Balance(c.Request.Context(), policy(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customer":    cu,
		"exposure":    exp,
		"outstanding": exp.Outstanding(),
		"available":   cu.CreditLimit - exp.Outstanding(),
	})
}

func (a *api) recordPayment(c *gin.Context) {
	var in payment.RecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := a.Payments.Record(c.Request.Context(), policy(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (a *api) listPayments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	list, err := a.Payments.ListByCustomer(c.Request.Context(), policy(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

// ---- discounts ----

func (a *api) listDiscounts(c *gin.Context) {
	list, err := a.Discounts.List(c.Request.Context(), policy(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (a *api) createDiscount(c *gin.Context) {
	var in discount.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	r, err := a.Discounts.Create(c.Request.Context(), policy(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a *api) deactivateDiscount(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.Discounts.Deactivate(c.Request.Context(), policy(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---- cart ----

type cartItemInput struct {
	BookID int64 `json:"book_id"`
	Qty    int   `json:"qty"`
}

func (a *api) getCart(c *gin.Context) {
	crt, err := a.Cart.Get(c.Request.Context(), policy(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

func (a *api) addCartItem(c *gin.Context) {
	var in cartItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	crt, err := a.Cart.Add(c.Request.Context(), policy(c), in.BookID, in.Qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

func (a *api) setCartItem(c *gin.Context) {
	bookID, ok := idParam(c, "bookId")
	if !ok {
		return
	}
	var in cartItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	crt, err := a.Cart.SetQty(c.Request.Context(), policy(c), bookID, in.Qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

func (a *api) removeCartItem(c *gin.Context) {
	bookID, ok := idParam(c, "bookId")
	if !ok {
		return
	}
	crt, err := a.Cart.Remove(c.Request.Context(), policy(c), bookID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

func (a *api) clearCart(c *gin.Context) {
	crt, err := a.Cart.Clear(c.Request.Context(), policy(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, crt)
}

func (a *api) checkout(c *gin.Context) {
	var in struct {
		Notes string `json:"notes"`
	}
	// el cuerpo es opcional; chunked llega con ContentLength -1
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
	}
	o, err := a.Orders.Checkout(c.Request.Context(), policy(c), in.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// ---- orders ----

func (a *api) listOrders(c *gin.Context) {
	f := order.ListFilter{Status: order.Status(c.Query("status"))}
	f.CustomerID, _ = strconv.ParseInt(c.Query("customer_id"), 10, 64)
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := a.Orders.ListOrders(c.Request.Context(), policy(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (a *api) createOrder(c *gin.Context) {
	var in order.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	o, err := a.Orders.CreateOrder(c.Request.Context(), policy(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (a *api) getOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := a.Orders.GetOrder(c.Request.Context(), policy(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (a *api) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	o, err := a.Orders.UpdateStatus(c.Request.Context(), policy(c), id, order.Status(in.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
