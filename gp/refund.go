/*
refund.go - Cancellation refund tiers

PURPOSE:
  Decides how much of a booking fee is credited back to the patient when a
  booking is cancelled. The amount depends on who cancels and how long before
  the appointment (lead time = appointment date - now).

DEFAULT POLICY:
  | Caller  | Lead time      | Refund |
  |---------|----------------|--------|
  | admin   | any            | 110%   |
  | patient | >= 24h         | 100%   |
  | patient | >= 2h, < 24h   | 50%    |
  | patient | < 2h           | 0%     |

  Tier boundaries are inclusive on the lower bound: exactly 24h before is a
  full refund, exactly 2h before is a half refund.

CONFIGURATION:
  factory.ParseRefundPolicy builds a RefundPolicy from JSON.

SEE ALSO:
  - booking.go: CancelBooking applies the policy
  - factory/refund.go: JSON representation
*/
package gp

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/warp/gp-ledger/generic"
)

// MaxRefundPercent bounds any configured percentage.
const MaxRefundPercent = 1000

// RefundTier grants Percent of the fee when the patient cancels at least
// MinLead before the appointment.
type RefundTier struct {
	MinLead time.Duration
	Percent int64
}

type RefundPolicy struct {
	// AdminPercent applies whenever an admin cancels, regardless of lead time.
	AdminPercent int64

	// Tiers are ordered by descending MinLead. The first tier whose MinLead
	// is <= the lead time applies; no match means no refund.
	Tiers []RefundTier
}

// DefaultRefundPolicy returns the 110/100/50/0 policy.
func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{
		AdminPercent: 110,
		Tiers: []RefundTier{
			{MinLead: 24 * time.Hour, Percent: 100},
			{MinLead: 2 * time.Hour, Percent: 50},
		},
	}
}

// Validate checks percent bounds and tier ordering.
func (p RefundPolicy) Validate() error {
	var errs []error
	if p.AdminPercent < 0 || p.AdminPercent > MaxRefundPercent {
		errs = append(errs, fmt.Errorf("admin percent %d out of range [0, %d]", p.AdminPercent, MaxRefundPercent))
	}
	for i, t := range p.Tiers {
		if t.Percent < 0 || t.Percent > MaxRefundPercent {
			errs = append(errs, fmt.Errorf("tier %d: percent %d out of range [0, %d]", i, t.Percent, MaxRefundPercent))
		}
		if t.MinLead < 0 {
			errs = append(errs, fmt.Errorf("tier %d: negative lead time %s", i, t.MinLead))
		}
		if i > 0 && t.MinLead >= p.Tiers[i-1].MinLead {
			errs = append(errs, fmt.Errorf("tier %d: lead time %s must be below %s", i, t.MinLead, p.Tiers[i-1].MinLead))
		}
	}
	return errors.Join(errs...)
}

// Sorted returns a copy with tiers ordered by descending lead time.
func (p RefundPolicy) Sorted() RefundPolicy {
	tiers := append([]RefundTier(nil), p.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinLead > tiers[j].MinLead })
	return RefundPolicy{AdminPercent: p.AdminPercent, Tiers: tiers}
}

// Percent returns the refund percentage for a cancellation.
func (p RefundPolicy) Percent(byAdmin bool, lead time.Duration) int64 {
	if byAdmin {
		return p.AdminPercent
	}
	for _, t := range p.Tiers {
		if lead >= t.MinLead {
			return t.Percent
		}
	}
	return 0
}

// Refund returns the amount credited for cancelling a booking with the given fee.
func (p RefundPolicy) Refund(fee generic.Amount, byAdmin bool, lead time.Duration) generic.Amount {
	return fee.Percent(p.Percent(byAdmin, lead))
}
