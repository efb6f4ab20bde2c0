package payment

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/identity"
	"github.com/ahinestrog/bookdist/internal/money"
	"github.com/ahinestrog/bookdist/internal/store"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "payment.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := identity.NewRepository(db)
	mk := func(name string, role identity.Role) identity.Policy {
		u := &identity.User{Username: name, PasswordHash: "x", Role: role}
		require.NoError(t, users.CreateUser(ctx, u))
		return identity.PolicyFor(&identity.Principal{UserID: u.ID, Role: role})
	}
	admin := mk("admin", identity.RoleAdmin)
	sam := mk("sam", identity.RoleSalesman)
	sue := mk("sue", identity.RoleSalesman)

	sid := sam.UserID()
	c := &customer.Customer{Name: "Shop", CreditLimit: money.MustParse("100"), SalesmanID: &sid}
	require.NoError(t, customer.NewRepository(db).Create(ctx, c))

	svc := NewService(db)
	p, err := svc.Record(ctx, sam, RecordInput{CustomerID: c.ID, Amount: money.MustParse("40"), Method: " transfer "})
	require.NoError(t, err)
	assert.Equal(t, "transfer", p.Method)
	assert.Equal(t, sam.UserID(), p.RecordedBy)

	_, err = svc.Record(ctx, sue, RecordInput{CustomerID: c.ID, Amount: 100})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Record(ctx, admin, RecordInput{CustomerID: c.ID, Amount: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Record(ctx, admin, RecordInput{CustomerID: 999, Amount: 100})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)
	missing := int64(999)
	_, err = svc.Record(ctx, admin, RecordInput{CustomerID: c.ID, OrderID: &missing, Amount: 100})
	assert.ErrorIs(t, err, apperr.ErrInvalidReference)

	list, err := svc.ListByCustomer(ctx, admin, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, money.MustParse("40"), list[0].Amount)
	assert.Nil(t, list[0].OrderID)

	exp, err := customer.NewRepository(db).Exposure(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("-40"), exp.Outstanding())
}
