package identity

// Policy answers capability questions for one request. It is built once from the
// resolved principal and handed to every operation; nothing reads a global user.
type Policy struct {
	p *Principal
}

func PolicyFor(p *Principal) Policy { return Policy{p: p} }

func (pol Policy) Authenticated() bool { return pol.p != nil }

// Principal returns the caller, or nil when unauthenticated.
func (pol Policy) Principal() *Principal { return pol.p }

func (pol Policy) UserID() int64 {
	if pol.p == nil {
		return 0
	}
	return pol.p.UserID
}

func (pol Policy) is(r Role) bool { return pol.p != nil && pol.p.Role == r }

func (pol Policy) IsAdmin() bool    { return pol.is(RoleAdmin) }
func (pol Policy) IsSalesman() bool { return pol.is(RoleSalesman) }
func (pol Policy) IsCustomer() bool { return pol.is(RoleCustomer) }
func (pol Policy) IsStaff() bool    { return pol.IsAdmin() || pol.IsSalesman() }

func (pol Policy) CanCreateOrders() bool    { return pol.IsStaff() }
func (pol Policy) CanCheckout() bool        { return pol.IsCustomer() }
func (pol Policy) CanManageCatalog() bool   { return pol.IsAdmin() }
func (pol Policy) CanManageDiscounts() bool { return pol.IsAdmin() }
func (pol Policy) CanManageUsers() bool     { return pol.IsAdmin() }
func (pol Policy) CanManageCustomers() bool { return pol.IsStaff() }
func (pol Policy) CanRecordPayments() bool  { return pol.IsStaff() }

// CanServeCustomer: admins serve everyone, salesmen only their assigned customers.
func (pol Policy) CanServeCustomer(salesmanID *int64) bool {
	switch {
	case pol.IsAdmin():
		return true
	case pol.IsSalesman():
		return salesmanID != nil && *salesmanID == pol.p.UserID
	default:
		return false
	}
}

// CanViewCustomer extends CanServeCustomer with the customer's own account.
func (pol Policy) CanViewCustomer(salesmanID, userID *int64) bool {
	if pol.IsCustomer() {
		return userID != nil && *userID == pol.p.UserID
	}
	return pol.CanServeCustomer(salesmanID)
}

// CanChangeOrderStatus: admin, or the salesman who created the order.
func (pol Policy) CanChangeOrderStatus(createdBy int64) bool {
	return pol.IsAdmin() || (pol.IsSalesman() && createdBy == pol.p.UserID)
}

// CanViewOrder: admin; the creating or assigned salesman; the customer who owns it.
func (pol Policy) CanViewOrder(createdBy int64, salesmanID, customerUserID *int64) bool {
	switch {
	case pol.IsAdmin():
		return true
	case pol.IsSalesman():
		return createdBy == pol.p.UserID || pol.CanServeCustomer(salesmanID)
	case pol.IsCustomer():
		return customerUserID != nil && *customerUserID == pol.p.UserID
	default:
		return false
	}
}
