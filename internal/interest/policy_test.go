package interest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuote(t *testing.T) {
	p, err := NewPolicy(DefaultRate)
	require.NoError(t, err)

	tests := []struct {
		principal string
		interest  string
		total     string
	}{
		{"500", "50", "550"},
		{"480", "48", "528"},
		{"0", "0", "0"},
		{"0.05", "0.01", "0.06"},
		{"0.04", "0", "0.04"},
		{"123.45", "12.35", "135.8"},
		{"999.99", "100", "1099.99"},
	}
	for _, tt := range tests {
		t.Run(tt.principal, func(t *testing.T) {
			q, err := p.Quote(d(tt.principal))
			require.NoError(t, err)
			assert.True(t, q.Interest.Equal(d(tt.interest)), "interest %s", q.Interest)
			assert.True(t, q.Total.Equal(d(tt.total)), "total %s", q.Total)
		})
	}
}

func TestQuoteTotalIsPrincipalPlusInterest(t *testing.T) {
	p, err := NewPolicy(d("0.075"))
	require.NoError(t, err)

	for cents := int64(0); cents < 5000; cents += 7 {
		principal := decimal.New(cents, -2)
		first, err := p.Quote(principal)
		require.NoError(t, err)
		second, err := p.Quote(principal)
		require.NoError(t, err)

		assert.True(t, first.Principal.Add(first.Interest).Equal(first.Total))
		assert.True(t, first.Total.Equal(second.Total))
		assert.True(t, first.Interest.Equal(first.Interest.Round(2)))
	}
}

func TestQuoteRejectsNegative(t *testing.T) {
	p, err := NewPolicy(DefaultRate)
	require.NoError(t, err)

	_, err = p.Quote(d("-1"))
	assert.ErrorIs(t, err, ErrNegativePrincipal)

	_, err = NewPolicy(d("-0.1"))
	assert.Error(t, err)
}
