package databases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMongoPaginate(t *testing.T) {
	tests := []struct {
		name        string
		limit, page int
		wantLimit   int64
		wantSkip    int64
	}{
		{"defaults", 0, 0, 20, 0},
		{"second page", 10, 2, 10, 10},
		{"capped", 500, 1, MaxPageSize, 0},
		{"negative page", 5, -3, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newMongoPaginate(tt.limit, tt.page).getPaginatedOpts()
			assert.Equal(t, tt.wantLimit, *opts.Limit)
			assert.Equal(t, tt.wantSkip, *opts.Skip)
		})
	}
}

func TestListOptionsSortsByPriority(t *testing.T) {
	opts := ListOptions(5, 3)
	assert.Equal(t, PriorityOrder, opts.Sort)
	assert.Equal(t, int64(10), *opts.Skip)
}
