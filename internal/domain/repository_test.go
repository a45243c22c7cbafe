package domain

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaquery/internal/core/apperror"
	"metaquery/internal/domain/shop"
)

func TestParseSort(t *testing.T) {
	def := shop.CategoryDef()

	tests := []struct {
		name  string
		specs []string
		want  []Order
		code  string
	}{
		{"bare field", []string{"description"}, []Order{{"description", Asc}}, ""},
		{"explicit direction", []string{"sortOrder,DESC"}, []Order{{"sortOrder", Desc}}, ""},
		{"prefixes", []string{"-id", "+status"}, []Order{{"id", Desc}, {"status", Asc}}, ""},
		{"blank specs skipped", []string{" ", "id"}, []Order{{"id", Asc}}, ""},
		{"unknown field", []string{"name"}, nil, apperror.CodeUnknownField},
		{"relations are not sortable", []string{"productId"}, nil, apperror.CodeUnknownField},
		{"bad direction", []string{"id,up"}, nil, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSort(def, tt.specs)
			if tt.code != "" {
				assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePageRequest(t *testing.T) {
	def := shop.CategoryDef()

	tests := []struct {
		query string
		want  PageRequest
	}{
		{"", PageRequest{Limit: DefaultPageSize, Sort: []Order{}}},
		{"page=2&size=5", PageRequest{Offset: 10, Limit: 5, Sort: []Order{}}},
		{"offset=3&limit=7&page=9", PageRequest{Offset: 3, Limit: 7, Sort: []Order{}}},
		{"size=100000", PageRequest{Limit: MaxPageSize, Sort: []Order{}}},
		{"sort=id,desc&sort=description", PageRequest{Limit: DefaultPageSize, Sort: []Order{{"id", Desc}, {"description", Asc}}}},
		{"sort=-sortOrder,id", PageRequest{Limit: DefaultPageSize, Sort: []Order{{"sortOrder", Desc}, {"id", Asc}}}},
		{"sort=id,desc,description", PageRequest{Limit: DefaultPageSize, Sort: []Order{{"id", Desc}, {"description", Asc}}}},
		{"sort=sortOrder,DESC,id,asc", PageRequest{Limit: DefaultPageSize, Sort: []Order{{"sortOrder", Desc}, {"id", Asc}}}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			params, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := ParsePageRequest(def, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParsePageRequest(def, url.Values{"page": {"-1"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	// A direction with no field before it is not taken for a field name.
	_, err = ParsePageRequest(def, url.Values{"sort": {"id,desc,desc"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownField))
}

func TestSplitSort(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"id", []string{"id"}},
		{"id,desc", []string{"id,desc"}},
		{"id,desc,title", []string{"id,desc", "title"}},
		{"-id,title,asc", []string{"-id", "title,asc"}},
		{"a,b,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSort(tt.raw))
		})
	}
}

func TestHookRegistry_StopsAtFirstError(t *testing.T) {
	r := NewHookRegistry[*int]()
	boom := errors.New("boom")
	calls := 0
	r.OnBeforeQuery(func(ctx context.Context, n *int) error { calls++; *n++; return nil })
	r.OnBeforeQuery(func(ctx context.Context, n *int) error { calls++; return boom })
	r.OnBeforeQuery(func(ctx context.Context, n *int) error { calls++; return nil })

	n := 0
	err := r.Run(context.Background(), BeforeQuery, &n)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, n)
}
