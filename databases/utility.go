package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxPageSize caps the page size of list queries
const MaxPageSize = 100

type mongoPaginate struct {
	limit int64
	page  int64
}

// PageBounds clamps a requested page size and page number to what list
// queries will actually use
func PageBounds(limit, page int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return limit, page
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	limit, page = PageBounds(limit, page)
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// PriorityOrder sorts by descending priority, then most recent first
var PriorityOrder = bson.D{{Key: "priority_score", Value: -1}, {Key: "created_at", Value: -1}}

// ListOptions returns find options for one page of a priority ordered listing
func ListOptions(limit, page int) *options.FindOptions {
	return newMongoPaginate(limit, page).getPaginatedOpts().SetSort(PriorityOrder)
}
