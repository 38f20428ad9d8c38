package user

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name         string
		page         int64
		pageSize     int64
		wantPage     int64
		wantPageSize int64
		wantSkip     int64
	}{
		{name: "first page", page: 1, pageSize: 10, wantPage: 1, wantPageSize: 10, wantSkip: 0},
		{name: "third page", page: 3, pageSize: 25, wantPage: 3, wantPageSize: 25, wantSkip: 50},
		{name: "zero page", page: 0, pageSize: 5, wantPage: 1, wantPageSize: 5, wantSkip: 0},
		{name: "negative page", page: -4, pageSize: 5, wantPage: 1, wantPageSize: 5, wantSkip: 0},
		{name: "zero page size", page: 2, pageSize: 0, wantPage: 2, wantPageSize: 10, wantSkip: 10},
		{name: "page size above max", page: 2, pageSize: 101, wantPage: 2, wantPageSize: 10, wantSkip: 10},
		{name: "page size at max", page: 1, pageSize: 100, wantPage: 1, wantPageSize: 100, wantSkip: 0},
		{name: "page size at min", page: 7, pageSize: 1, wantPage: 7, wantPageSize: 1, wantSkip: 6},
		{name: "huge page saturates", page: math.MaxInt64, pageSize: 100, wantPage: math.MaxInt64, wantPageSize: 100, wantSkip: math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPageRequest(tt.page, tt.pageSize)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPageSize, p.PageSize)
			assert.Equal(t, tt.wantSkip, p.Skip())
		})
	}
}

func TestNewPagedResult_NilUsers(t *testing.T) {
	res := NewPagedResult(nil, NewPageRequest(4, 10), 12)

	assert.NotNil(t, res.Users)
	assert.Empty(t, res.Users)
	assert.Equal(t, int64(12), res.TotalCount)
	assert.Equal(t, int64(4), res.Page)
}

func TestPatch_Fields(t *testing.T) {
	email := "x@y.com"
	empty := ""
	last := "Smith"

	fields := Patch{Email: &email, FirstName: &empty, LastName: &last}.Fields("email", "firstName", "lastName")

	assert.Equal(t, map[string]string{"email": "x@y.com", "lastName": "Smith"}, fields)
	assert.Empty(t, Patch{}.Fields("email", "firstName", "lastName"))
}
