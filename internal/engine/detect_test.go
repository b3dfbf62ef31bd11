package engine

import (
	"testing"

	"github.com/priceguard/server/internal/pricecache"
)

func TestChanged(t *testing.T) {
	tests := []struct {
		name      string
		prior     pricecache.State
		hasPrior  bool
		price     int
		isSoldOut bool
		want      bool
	}{
		{
			name:  "first observation",
			price: 50000,
			want:  true,
		},
		{
			name:     "identical observation",
			prior:    pricecache.State{Price: 50000, LowestPrice: 50000},
			hasPrior: true,
			price:    50000,
			want:     false,
		},
		{
			name:     "price dropped",
			prior:    pricecache.State{Price: 50000, LowestPrice: 50000},
			hasPrior: true,
			price:    45000,
			want:     true,
		},
		{
			name:     "price rose",
			prior:    pricecache.State{Price: 45000, LowestPrice: 45000},
			hasPrior: true,
			price:    50000,
			want:     true,
		},
		{
			name:      "went sold out at same price",
			prior:     pricecache.State{Price: 50000, LowestPrice: 50000},
			hasPrior:  true,
			price:     50000,
			isSoldOut: true,
			want:      true,
		},
		{
			name:     "restocked at same price",
			prior:    pricecache.State{Price: 50000, IsSoldOut: true, LowestPrice: 50000},
			hasPrior: true,
			price:    50000,
			want:     true,
		},
		{
			name:     "lowest price differs but current matches",
			prior:    pricecache.State{Price: 50000, LowestPrice: 40000},
			hasPrior: true,
			price:    50000,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := changed(tt.prior, tt.hasPrior, tt.price, tt.isSoldOut)
			if got != tt.want {
				t.Errorf("changed() = %t, want %t", got, tt.want)
			}
		})
	}
}
