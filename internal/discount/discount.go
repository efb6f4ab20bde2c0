// Package discount picks the best percentage discount for an order subtotal.
package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/bookdist/internal/money"
)

type Rule struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Percentage     decimal.Decimal `json:"percentage"`
	MinOrderAmount money.Money     `json:"min_order_amount"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	Active         bool            `json:"active"`
}

// Applies reports whether the rule can be used for subtotal at now. Window
// bounds are inclusive on both ends.
func (r Rule) Applies(subtotal money.Money, now time.Time) bool {
	if !r.Active || subtotal < r.MinOrderAmount {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return false
	}
	return true
}

// Resolve returns the qualifying rule with the highest percentage. Equal
// percentages go to the lowest rule ID so the result does not depend on order.
func Resolve(rules []Rule, subtotal money.Money, now time.Time) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range rules {
		if !r.Applies(subtotal, now) {
			continue
		}
		switch c := r.Percentage.Cmp(best.Percentage); {
		case !found, c > 0, c == 0 && r.ID < best.ID:
			best, found = r, true
		}
	}
	return best, found
}

// BestPercentage is Resolve reduced to the percentage, zero when nothing applies.
func BestPercentage(rules []Rule, subtotal money.Money, now time.Time) decimal.Decimal {
	if r, ok := Resolve(rules, subtotal, now); ok {
		return r.Percentage
	}
	return decimal.Zero
}
