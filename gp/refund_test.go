package gp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/gp-ledger/generic"
)

func TestDefaultRefundPolicy_Percent(t *testing.T) {
	p := DefaultRefundPolicy()

	tests := []struct {
		name    string
		byAdmin bool
		lead    time.Duration
		want    int64
	}{
		{"admin any lead", true, 0, 110},
		{"admin negative lead", true, -time.Hour, 110},
		{"a week ahead", false, 7 * 24 * time.Hour, 100},
		{"exactly 24h", false, 24 * time.Hour, 100},
		{"just under 24h", false, 24*time.Hour - time.Nanosecond, 50},
		{"exactly 2h", false, 2 * time.Hour, 50},
		{"just under 2h", false, 2*time.Hour - time.Nanosecond, 0},
		{"zero lead", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Percent(tt.byAdmin, tt.lead))
		})
	}
}

func TestRefundPolicy_RefundTruncates(t *testing.T) {
	p := DefaultRefundPolicy()

	got := p.Refund(generic.NewAmount(1001), false, 3*time.Hour)

	assert.True(t, got.Equal(generic.NewAmount(500)), got.String())
}

func TestRefundPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultRefundPolicy().Validate())
	assert.NoError(t, RefundPolicy{}.Validate())

	unordered := RefundPolicy{Tiers: []RefundTier{{MinLead: time.Hour, Percent: 10}, {MinLead: 2 * time.Hour, Percent: 20}}}
	assert.Error(t, unordered.Validate())
	assert.NoError(t, unordered.Sorted().Validate())

	assert.Error(t, RefundPolicy{AdminPercent: -1}.Validate())
	assert.Error(t, RefundPolicy{AdminPercent: MaxRefundPercent + 1}.Validate())
	assert.Error(t, RefundPolicy{Tiers: []RefundTier{{MinLead: -time.Hour, Percent: 10}}}.Validate())
}
