package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/catalog"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/discount"
	"github.com/ahinestrog/bookdist/internal/httpapi"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

var seedBooks = []catalog.BookInput{
	{Title: "Cien años de soledad", Author: "Gabriel García Márquez", Price: money.MustParse("45.00"), StockQty: 40, ReorderLevel: 10},
	{Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes", Price: money.MustParse("60.00"), StockQty: 25, ReorderLevel: 5},
	{Title: "La vorágine", Author: "José Eustasio Rivera", Price: money.MustParse("32.50"), StockQty: 12, ReorderLevel: 5},
	{Title: "Rayuela", Author: "Julio Cortázar", Price: money.MustParse("38.00"), StockQty: 3, ReorderLevel: 5},
	{Title: "Pedro Páramo", Author: "Juan Rulfo", Price: money.MustParse("28.00"), StockQty: 0, ReorderLevel: 4},
}

// seed loads demo users, books, customers and discount rules. It does nothing
// once the admin account exists.
func seed(ctx context.Context, svc httpapi.Services) error {
	_, err := identity.NewRepository(svc.DB).GetByUsername(ctx, "admin")
	if err == nil {
		log.Info().Msg("seed: already applied")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	admin, err := seedUser(ctx, svc, "admin", identity.RoleAdmin)
	if err != nil {
		return err
	}
	sales, err := seedUser(ctx, svc, "vendedor", identity.RoleSalesman)
	if err != nil {
		return err
	}
	if _, err := seedUser(ctx, svc, "lector", identity.RoleCustomer); err != nil {
		return err
	}

	for _, in := range seedBooks {
		if _, err := svc.Catalog.Create(ctx, admin, in); err != nil {
			return err
		}
	}

	salesID := sales.UserID()
	if _, err := svc.Customers.Create(ctx, admin, customer.CreateInput{
		Name:        "Librería El Ateneo",
		Email:       "compras@ateneo.example",
		CreditLimit: money.MustParse("5000"),
		SalesmanID:  &salesID,
	}); err != nil {
		return err
	}

	rules := []discount.CreateInput{
		{Name: "Pedido mediano", Percentage: decimal.NewFromInt(5), MinOrderAmount: money.MustParse("50")},
		{Name: "Pedido grande", Percentage: decimal.NewFromInt(10), MinOrderAmount: money.MustParse("100")},
	}
	for _, in := range rules {
		if _, err := svc.Discounts.Create(ctx, admin, in); err != nil {
			return err
		}
	}

	log.Info().Int("books", len(seedBooks)).Int("rules", len(rules)).Msg("seeded demo data")
	return nil
}

func seedUser(ctx context.Context, svc httpapi.Services, name string, role identity.Role) (identity.Policy, error) {
	u, err := svc.Identity.CreateUser(ctx, name, name+"123", role)
	if err != nil {
		return identity.Policy{}, err
	}
	return identity.PolicyFor(&identity.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}), nil
}
