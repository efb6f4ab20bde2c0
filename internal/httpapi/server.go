// Package httpapi is the REST surface: a gin engine behind CORS that resolves
// the bearer token once per request and hands a policy to the services.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/bookdist/internal/cart"
	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/order"
	"github.com/ahinestrog/bookdist/internal/payment"
	"github.com/ahinestrog/bookdist/internal/store"
)

// Services are the collaborators every handler needs.
type Services struct {
	DB        *store.DB
	Identity  *identity.Service
	Catalog   *catalog.Service
	Customers *customer.Service
	Payments  *payment.Service
	Discounts *discount.Service
	Cart      *cart.Service
	Orders    *order.Service
}

type api struct {
	Services
}

const policyKey = "bookdist.policy"

// NewHandler builds the router and wraps it with CORS for the given origins.
func NewHandler(svc Services, origins []string) http.Handler {
	a := &api{Services: svc}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), a.authenticate())
	r.GET("/healthz", a.health)

	g := r.Group("/api")
	{
		g.POST("/auth/login", a.login)
		g.POST("/auth/register", a.register)
		g.POST("/auth/logout", a.logout)

		g.GET("/books", a.listBooks)
		g.GET("/books/low-stock", a.lowStock)
		g.GET("/books/:id", a.getBook)
		g.POST("/books", a.createBook)
		g.PUT("/books/:id", a.updateBook)
		g.POST("/books/:id/receipts", a.receiveStock)

		g.GET("/customers", a.listCustomers)
		g.POST("/customers", a.createCustomer)
		g.GET("/customers/:id", a.getCustomer)
		g.GET("/customers/:id/payments", a.listPayments)
		g.POST("/payments", a.recordPayment)

		g.GET("/discounts", a.listDiscounts)
		g.POST("/discounts", a.createDiscount)
		g.DELETE("/discounts/:id", a.deactivateDiscount)

		g.GET("/cart", a.getCart)
		g.POST("/cart/items", a.addCartItem)
		g.PUT("/cart/items/:bookId", a.setCartItem)
		g.DELETE("/cart/items/:bookId", a.removeCartItem)
		g.DELETE("/cart", a.clearCart)
		g.POST("/cart/checkout", a.checkout)

		g.GET("/orders", a.listOrders)
		g.POST("/orders", a.createOrder)
		g.GET("/orders/:id", a.getOrder)
		g.PATCH("/orders/:id/status", a.updateOrderStatus)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// authenticate resolves an optional bearer token. A request without one runs
// with an anonymous policy; a bad token is rejected outright.
func (a *api) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Set(policyKey, identity.Policy{})
			c.Next()
			return
		}
		p, err := a.Identity.Resolve(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(policyKey, identity.PolicyFor(p))
		c.Next()
	}
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func policy(c *gin.Context) identity.Policy {
	if v, ok := c.Get(policyKey); ok {
		if pol, ok := v.(identity.Policy); ok {
			return pol
		}
	}
	return identity.Policy{}
}

func (a *api) health(c *gin.Context) {
	if err := a.DB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": a.DB.Driver()})
}
