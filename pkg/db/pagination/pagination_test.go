package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipValue(t *testing.T) {
	cases := []struct {
		name     string
		page     int
		size     int
		expected int
	}{
		{"first page", 1, 12, 0},
		{"second page", 2, 12, 12},
		{"third page small size", 3, 2, 4},
		{"zero page", 0, 12, 0},
		{"negative size", 2, -1, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SkipValue(tc.page, tc.size))
		})
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	p := Pagination{Page: -3, PageSize: 0}.Normalize(0)
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	capped := Pagination{Page: 2, PageSize: 500}.Normalize(100)
	assert.Equal(t, 2, capped.Page)
	assert.Equal(t, 100, capped.PageSize)
}

func TestWindowClampsToTotal(t *testing.T) {
	start, end := Window(5, Pagination{Page: 2, PageSize: 2})
	assert.Equal(t, 2, start)
	assert.Equal(t, 4, end)

	start, end = Window(5, Pagination{Page: 3, PageSize: 2})
	assert.Equal(t, 4, start)
	assert.Equal(t, 5, end)

	start, end = Window(5, Pagination{Page: 9, PageSize: 2})
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(5, Pagination{Page: 2, PageSize: 2})
	assert.True(t, info.HasMore)
	assert.Equal(t, 5, info.Total)

	last := BuildPageInfo(5, Pagination{Page: 3, PageSize: 2})
	assert.False(t, last.HasMore)
}
