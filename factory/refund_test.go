package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/factory"
	"github.com/warp/gp-ledger/gp"
)

func TestParseRefundPolicy_SortsTiers(t *testing.T) {
	// GIVEN: Tiers listed smallest first, with a fractional hour
	// WHEN: Parsing
	// THEN: Tiers are ordered by descending lead time

	policy, err := factory.ParseRefundPolicy(`{
		"admin_percent": 120,
		"tiers": [
			{"min_hours": 0.5, "percent": 10},
			{"min_hours": 48, "percent": 100}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, int64(120), policy.AdminPercent)
	assert.Equal(t, []gp.RefundTier{
		{MinLead: 48 * time.Hour, Percent: 100},
		{MinLead: 30 * time.Minute, Percent: 10},
	}, policy.Tiers)
	assert.Equal(t, int64(10), policy.Percent(false, time.Hour))
	assert.Equal(t, int64(0), policy.Percent(false, 29*time.Minute))
}

func TestParseRefundPolicy_Rejections(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"admin_percent": `},
		{"negative hours", `{"tiers": [{"min_hours": -1, "percent": 10}]}`},
		{"duplicate lead", `{"tiers": [{"min_hours": 2, "percent": 10}, {"min_hours": 2, "percent": 20}]}`},
		{"percent too large", `{"admin_percent": 5000}`},
		{"negative percent", `{"tiers": [{"min_hours": 1, "percent": -5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseRefundPolicy(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestDefaultRefundPolicyJSON_RoundTrip(t *testing.T) {
	policy, err := factory.ParseRefundPolicy(factory.DefaultRefundPolicyJSON())
	require.NoError(t, err)

	assert.Equal(t, gp.DefaultRefundPolicy(), *policy)
	assert.Equal(t, factory.RefundPolicyJSON{
		AdminPercent: 110,
		Tiers: []factory.RefundTierJSON{
			{MinHours: 24, Percent: 100},
			{MinHours: 2, Percent: 50},
		},
	}, factory.ToJSON(*policy))
}
