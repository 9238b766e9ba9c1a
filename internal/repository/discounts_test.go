package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/repository"
)

func TestDiscountAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		discount repository.Discount
		subtotal int64
		want     int64
	}{
		{
			name:     "percentage",
			discount: repository.Discount{Type: repository.DiscountPercentage, Value: 20},
			subtotal: 10_000,
			want:     2_000,
		},
		{
			name:     "percentage rounds down",
			discount: repository.Discount{Type: repository.DiscountPercentage, Value: 33},
			subtotal: 100,
			want:     33,
		},
		{
			name:     "percentage over 100 caps at subtotal",
			discount: repository.Discount{Type: repository.DiscountPercentage, Value: 150},
			subtotal: 5_000,
			want:     5_000,
		},
		{
			name:     "negative percentage is no discount",
			discount: repository.Discount{Type: repository.DiscountPercentage, Value: -10},
			subtotal: 5_000,
			want:     0,
		},
		{
			name:     "fixed",
			discount: repository.Discount{Type: repository.DiscountFixed, Value: 500},
			subtotal: 2_000,
			want:     500,
		},
		{
			name:     "fixed caps at subtotal",
			discount: repository.Discount{Type: repository.DiscountFixed, Value: 5_000},
			subtotal: 2_000,
			want:     2_000,
		},
		{
			name:     "unknown type is no discount",
			discount: repository.Discount{Type: "bogus", Value: 500},
			subtotal: 2_000,
			want:     0,
		},
		{
			name:     "zero subtotal",
			discount: repository.Discount{Type: repository.DiscountFixed, Value: 500},
			subtotal: 0,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, tt.discount.Amount(tt.subtotal))
		})
	}
}

func TestDiscountValid(t *testing.T) {
	t.Parallel()

	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)
	limit := 3

	t.Run("active without expiry", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: true}
		require.True(t, d.Valid(now))
	})

	t.Run("inactive", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: false}
		require.False(t, d.Valid(now))
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: true, ExpiresAt: &past}
		require.False(t, d.Valid(now))
	})

	t.Run("not yet expired", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: true, ExpiresAt: &future}
		require.True(t, d.Valid(now))
	})

	t.Run("usage limit reached", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: true, UsageLimit: &limit, UsageCount: 3}
		require.False(t, d.Valid(now))
	})

	t.Run("under usage limit", func(t *testing.T) {
		t.Parallel()

		d := repository.Discount{Active: true, UsageLimit: &limit, UsageCount: 2}
		require.True(t, d.Valid(now))
	})
}

func TestValidOrderStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []string{"pending", "processing", "shipped", "delivered", "cancelled"} {
		require.True(t, repository.ValidOrderStatus(status), status)
	}
	require.False(t, repository.ValidOrderStatus("refunded"))
	require.False(t, repository.ValidOrderStatus(""))
}
