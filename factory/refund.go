/*
Package factory provides JSON to Go refund policy conversion.

PURPOSE:
  Converts a JSON refund policy into gp.RefundPolicy so a practice can change
  its cancellation terms without a code change.

JSON SCHEMA:
  {
    "admin_percent": 110,
    "tiers": [
      {"min_hours": 24, "percent": 100},
      {"min_hours": 2,  "percent": 50}
    ]
  }

  A patient cancelling at least min_hours before the appointment gets
  percent of the fee back; the first matching tier wins. Cancelling below the
  smallest min_hours refunds nothing. Tiers may be given in any order.

USAGE:
  policy, err := factory.ParseRefundPolicy(jsonString)
  engine, err := gp.New(ctx, store, gp.Options{Refunds: policy, ...})

SEE ALSO:
  - gp/refund.go: RefundPolicy type and evaluation
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RefundPolicyJSON is the JSON representation of a refund policy.
type RefundPolicyJSON struct {
	AdminPercent int64            `json:"admin_percent"`
	Tiers        []RefundTierJSON `json:"tiers"`
}

// RefundTierJSON represents one patient cancellation tier.
type RefundTierJSON struct {
	MinHours float64 `json:"min_hours"`
	Percent  int64   `json:"percent"`
}

// ParseRefundPolicy parses a JSON string into a validated RefundPolicy.
func ParseRefundPolicy(jsonStr string) (*gp.RefundPolicy, error) {
	var rj RefundPolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("invalid refund policy JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts the JSON form into a validated RefundPolicy.
func FromJSON(rj RefundPolicyJSON) (*gp.RefundPolicy, error) {
	policy := gp.RefundPolicy{AdminPercent: rj.AdminPercent}
	for i, t := range rj.Tiers {
		if t.MinHours < 0 || math.IsNaN(t.MinHours) || math.IsInf(t.MinHours, 0) {
			return nil, fmt.Errorf("tier %d: invalid min_hours %v", i, t.MinHours)
		}
		policy.Tiers = append(policy.Tiers, gp.RefundTier{
			MinLead: time.Duration(t.MinHours * float64(time.Hour)),
			Percent: t.Percent,
		})
	}
	policy = policy.Sorted()
	if err := policy.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid refund policy"), err)
	}
	return &policy, nil
}

// ToJSON converts a RefundPolicy back to its JSON form.
func ToJSON(p gp.RefundPolicy) RefundPolicyJSON {
	rj := RefundPolicyJSON{AdminPercent: p.AdminPercent, Tiers: []RefundTierJSON{}}
	for _, t := range p.Tiers {
		rj.Tiers = append(rj.Tiers, RefundTierJSON{
			MinHours: t.MinLead.Hours(),
			Percent:  t.Percent,
		})
	}
	return rj
}

// DefaultRefundPolicyJSON returns the 110/100/50/0 policy as indented JSON.
func DefaultRefundPolicyJSON() string {
	b, _ := json.MarshalIndent(ToJSON(gp.DefaultRefundPolicy()), "", "  ")
	return string(b)
}
