package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
)

func TestParseAmount(t *testing.T) {
	a, err := generic.ParseAmount("1000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", a.String())

	for _, bad := range []string{"-1", "1.5", "abc", ""} {
		_, err := generic.ParseAmount(bad)
		assert.Error(t, err, bad)
	}

	neg, err := generic.ParseSignedAmount("-42")
	require.NoError(t, err)
	assert.True(t, neg.Equal(generic.NewAmount(-42)))

	_, err = generic.ParseSignedAmount("-4.2")
	assert.Error(t, err)
}

func TestAmount_Percent(t *testing.T) {
	tests := []struct {
		amount int64
		pct    int64
		want   int64
	}{
		{1000, 110, 1100},
		{1000, 100, 1000},
		{1001, 50, 500},
		{999, 0, 0},
		{3, 33, 0},
	}
	for _, tt := range tests {
		got := generic.NewAmount(tt.amount).Percent(tt.pct)
		assert.True(t, got.Equal(generic.NewAmount(tt.want)), "%d%% of %d: got %s", tt.pct, tt.amount, got)
	}
}

func TestAmount_JSON(t *testing.T) {
	b, err := json.Marshal(generic.MustParseAmount("123456789012345678901"))
	require.NoError(t, err)
	assert.Equal(t, `"123456789012345678901"`, string(b))

	var a generic.Amount
	require.NoError(t, json.Unmarshal([]byte(`"250"`), &a))
	assert.True(t, a.Equal(generic.NewAmount(250)))
	require.NoError(t, json.Unmarshal([]byte(`250`), &a))
	assert.True(t, a.Equal(generic.NewAmount(250)))

	assert.Error(t, json.Unmarshal([]byte(`"2.5"`), &a))
}

func TestDateKey(t *testing.T) {
	local := time.FixedZone("UTC+10", 10*60*60)

	assert.Equal(t, "2025-03-10", generic.DateKey(time.Date(2025, time.March, 10, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2025-03-09", generic.DateKey(time.Date(2025, time.March, 10, 9, 0, 0, 0, local)))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	c := generic.NewManualClock(start)

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestTransferError_Unwraps(t *testing.T) {
	cause := assert.AnError
	err := &generic.TransferError{To: "0xp", Amount: generic.NewAmount(5), Err: cause}

	assert.ErrorIs(t, err, generic.ErrTransferFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "0xp")
}

func TestSum(t *testing.T) {
	txs := []generic.Transaction{
		{Delta: generic.NewAmount(1000)},
		{Delta: generic.NewAmount(-400)},
		{Delta: generic.NewAmount(50)},
	}

	assert.True(t, generic.Sum(txs).Equal(generic.NewAmount(650)))
	assert.True(t, generic.Sum(nil).IsZero())
}
