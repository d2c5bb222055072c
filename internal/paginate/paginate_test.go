package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestPaginate(t *testing.T) {
	twelve := seq(12)

	tests := []struct {
		name      string
		items     []int
		page      int
		size      int
		wantItems []int
		wantTotal int
	}{
		{name: "empty", items: []int{}, page: 0, size: 5, wantItems: []int{}, wantTotal: 1},
		{name: "nil", items: nil, page: 3, size: 5, wantItems: nil, wantTotal: 1},
		{name: "first page", items: twelve, page: 0, size: 5, wantItems: twelve[0:5], wantTotal: 3},
		{name: "last partial page", items: twelve, page: 2, size: 5, wantItems: twelve[10:12], wantTotal: 3},
		{name: "clamped high", items: twelve, page: 99, size: 5, wantItems: twelve[10:12], wantTotal: 3},
		{name: "clamped negative", items: twelve, page: -4, size: 5, wantItems: twelve[0:5], wantTotal: 3},
		{name: "exact multiple", items: seq(10), page: 1, size: 5, wantItems: []int{5, 6, 7, 8, 9}, wantTotal: 2},
		{name: "zero size", items: twelve, page: 1, size: 0, wantItems: twelve, wantTotal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := Paginate(tt.items, tt.page, tt.size)
			assert.Equal(t, tt.wantTotal, total)
			assert.Len(t, got, len(tt.wantItems))
			for i := range tt.wantItems {
				assert.Equal(t, tt.wantItems[i], got[i])
			}
		})
	}
}

func TestPaginate_PageDoesNotAliasTail(t *testing.T) {
	items := seq(12)
	page, _ := Paginate(items, 0, 5)
	page = append(page, 100)

	assert.Equal(t, 5, items[5])
}
