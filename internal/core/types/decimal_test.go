package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"}, // half rounds away from zero
		{"1.004", "1"},
		{"-1.005", "-1.01"},
		{"2.675", "2.68"},
		{"100", "100"},
	}

	for _, tc := range tests {
		got := Round2(MustMoney(tc.in))
		assert.True(t, MustMoney(tc.want).Equal(got), "Round2(%s) = %s", tc.in, got)
	}
}

func TestPercent(t *testing.T) {
	assert.True(t, MustMoney("10").Equal(Percent(MustMoney("100"), MustMoney("10"))))
	assert.True(t, MustMoney("18").Equal(Percent(MustMoney("90"), MustMoney("20"))))
	// 33.335 * 10% = 3.3335 -> 3.33
	assert.True(t, MustMoney("3.33").Equal(Percent(MustMoney("33.335"), MustMoney("10"))))
	assert.True(t, Percent(MustMoney("100"), Zero()).IsZero())
}

func TestQuantity_Conversions(t *testing.T) {
	q := NewQuantityFromFloat64(2.5)
	assert.Equal(t, int64(25000), q.Int64Scaled())
	assert.Equal(t, 2.5, q.Float64())
	assert.Equal(t, "2.5000", q.String())
	assert.True(t, MustMoney("2.5").Equal(q.Decimal()))

	neg := NewQuantityFromFloat64(-0.0001)
	assert.Equal(t, "-0.0001", neg.String())
	assert.True(t, neg.IsNegative())
}

func TestQuantity_JSON(t *testing.T) {
	raw, err := json.Marshal(NewQuantityFromFloat64(1.25))
	require.NoError(t, err)
	assert.Equal(t, "1.2500", string(raw))

	var q Quantity
	require.NoError(t, json.Unmarshal([]byte("3.5"), &q))
	assert.Equal(t, NewQuantityFromFloat64(3.5), q)

	require.NoError(t, json.Unmarshal([]byte(`"0.0001"`), &q))
	assert.Equal(t, Quantity(1), q)

	require.NoError(t, json.Unmarshal([]byte("null"), &q))
	assert.True(t, q.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &q))
}
