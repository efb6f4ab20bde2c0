package order

import (
	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/customer"
	"github.com/ahinestrog/bookdist/internal/money"
)

// CheckCredit rejects an order that would push the customer's unpaid balance
// past its credit limit.
func CheckCredit(e customer.Exposure, limit, proposed money.Money) error {
	outstanding := e.Outstanding()
	if outstanding+proposed > limit {
		return apperr.New(apperr.KindCreditLimitExceeded,
			"credit limit exceeded: outstanding %s plus order total %s is over the limit of %s",
			outstanding.Display(), proposed.Display(), limit.Display())
	}
	return nil
}
