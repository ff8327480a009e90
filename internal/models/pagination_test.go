package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, DefaultLimit},
		{-4, 10, 1, 10},
		{3, MaxLimit + 1, 3, MaxLimit},
		{2, 1, 2, 1},
	}
	for _, tt := range tests {
		page, limit := NormalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page, "page for %d/%d", tt.page, tt.limit)
		assert.Equal(t, tt.wantLimit, limit, "limit for %d/%d", tt.page, tt.limit)
	}
}

func TestNewPaginationPages(t *testing.T) {
	tests := []struct {
		total     int64
		limit     int
		wantPages int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{101, 20, 6},
	}
	for _, tt := range tests {
		p := NewPagination(tt.total, 1, tt.limit)
		assert.Equal(t, tt.wantPages, p.Pages, "total %d limit %d", tt.total, tt.limit)
		assert.Equal(t, tt.total, p.Total)
	}
}

// Walking every page with Skip and Limit must visit each item exactly once.
func TestPaginationCoversEveryItem(t *testing.T) {
	for _, n := range []int{0, 1, 7, 20, 21, 95} {
		for _, limit := range []int{1, 5, 20} {
			t.Run(fmt.Sprintf("n=%d,limit=%d", n, limit), func(t *testing.T) {
				items := make([]int, n)
				for i := range items {
					items[i] = i
				}

				var seen []int
				pages := NewPagination(int64(n), 1, limit).Pages
				for page := 1; page <= pages; page++ {
					pg := NewPagination(int64(n), page, limit)
					start := int(pg.Skip())
					end := min(start+pg.Limit, n)
					assert.Equal(t, (page-1)*limit, start)
					seen = append(seen, items[start:end]...)
				}
				assert.Len(t, seen, n)
				if n > 0 {
					assert.Equal(t, items, seen)
				}
			})
		}
	}
}
