// Package shoptest holds query scenarios over shop.SampleData that every
// store must answer identically.
package shoptest

import (
	"fmt"
	"net/url"

	"metaquery/internal/domain"
	"metaquery/internal/domain/shop"
)

// Scenario is one criteria query and the ids it must select.
type Scenario struct {
	Entity string
	Query  string // query parameters as sent by a client
	Want   []int64
	// UsesDates marks scenarios that depend on DATE columns.
	UsesDates bool
}

// Params parses Query. It panics on malformed input.
func (s Scenario) Params() url.Values {
	v, err := url.ParseQuery(s.Query)
	if err != nil {
		panic(err)
	}
	return v
}

func (s Scenario) Name() string {
	if s.Query == "" {
		return s.Entity + "?<none>"
	}
	return s.Entity + "?" + s.Query
}

// Scenarios covers every operation on every filter kind, relation filters of
// each cardinality, null handling and empty sets.
func Scenarios() []Scenario {
	const (
		cat  = shop.EntityCategory
		prod = shop.EntityProduct
		cust = shop.EntityCustomer
		addr = shop.EntityAddress
	)
	return []Scenario{
		{Entity: cat, Query: "", Want: []int64{1, 2, 3, 4, 5}},
		{Entity: cat, Query: "id.equals=1", Want: []int64{1}},
		{Entity: cat, Query: "id.notEquals=1", Want: []int64{2, 3, 4, 5}},
		{Entity: cat, Query: "id.greaterThanOrEqual=3", Want: []int64{3, 4, 5}},
		{Entity: cat, Query: "id.greaterThan=3&id.lessThan=5", Want: []int64{4}},
		{Entity: cat, Query: "id.lessThanOrEqual=2", Want: []int64{1, 2}},
		{Entity: cat, Query: "id.greaterThanOrEqual=3&id.lessThanOrEqual=3", Want: []int64{3}},
		{Entity: cat, Query: "id.equals=1&id.notEquals=1", Want: []int64{}},
		{Entity: cat, Query: "id.in=1,3", Want: []int64{1, 3}},
		{Entity: cat, Query: "id.in=", Want: []int64{}},
		{Entity: cat, Query: "id.notIn=", Want: []int64{1, 2, 3, 4, 5}},
		{Entity: cat, Query: "id.notIn=1,2", Want: []int64{3, 4, 5}},
		{Entity: cat, Query: "description.contains=top", Want: []int64{3}},
		{Entity: cat, Query: "description.contains=A", Want: []int64{4}},
		{Entity: cat, Query: "description.contains=TOP", Want: []int64{}},
		{Entity: cat, Query: "description.contains=100%25", Want: []int64{5}},
		{Entity: cat, Query: "description.notContains=s", Want: []int64{4}},
		{Entity: cat, Query: "sortOrder.specified=false", Want: []int64{4}},
		{Entity: cat, Query: "sortOrder.specified=true&sortOrder.lessThanOrEqual=2", Want: []int64{1, 2}},
		{Entity: cat, Query: "sortOrder.notEquals=2", Want: []int64{1, 3, 5}},
		{Entity: cat, Query: "sortOrder.greaterThanOrEqual=1", Want: []int64{1, 2, 3, 5}},
		{Entity: cat, Query: "sortOrder.greaterThan=1", Want: []int64{2, 3, 5}},
		{Entity: cat, Query: "sortOrder.greaterThanOrEqual=2&sortOrder.lessThanOrEqual=2", Want: []int64{2}},
		{Entity: cat, Query: "sortOrder.notIn=1,2", Want: []int64{3, 5}},
		{Entity: cat, Query: "status.equals=AVAILABLE", Want: []int64{1, 2}},
		{Entity: cat, Query: "status.in=RESTRICTED,DISABLED", Want: []int64{3, 4}},
		{Entity: cat, Query: "status.specified=false", Want: []int64{5}},
		{Entity: cat, Query: "status.notEquals=AVAILABLE", Want: []int64{3, 4}},
		{Entity: cat, Query: "status.equals=DELETED", Want: []int64{}},
		{Entity: cat, Query: "status.equals=AVAILABLE&status.notEquals=AVAILABLE", Want: []int64{}},
		{Entity: cat, Query: "parentId.equals=1", Want: []int64{2, 3}},
		{Entity: cat, Query: "parentId.specified=false", Want: []int64{1, 4}},
		{Entity: cat, Query: "parentId.notEquals=1", Want: []int64{5}},
		{Entity: cat, Query: "productId.equals=2", Want: []int64{1, 3}},
		{Entity: cat, Query: "productId.specified=false", Want: []int64{4, 5}},
		{Entity: cat, Query: "productId.specified=true", Want: []int64{1, 2, 3}},
		{Entity: cat, Query: "productId.in=1,2", Want: []int64{1, 2, 3}},
		{Entity: cat, Query: "productId.greaterThan=1&productId.lessThan=3", Want: []int64{1, 3}},
		{Entity: cat, Query: "productId.equals=1&productId.notEquals=1", Want: []int64{}},
		{Entity: cat, Query: "productId.notIn=1", Want: []int64{1, 3}},
		{Entity: cat, Query: "productId.in=1&distinct=true", Want: []int64{1, 2}},
		{Entity: cat, Query: "id.greaterThan=1&productId.specified=true", Want: []int64{2, 3}},
		{Entity: cat, Query: "parentId.equals=1&productId.equals=3", Want: []int64{3}},
		{Entity: cat, Query: "dateAdded.greaterThanOrEqual=2024-02-01&dateAdded.lessThan=2024-03-01", Want: []int64{2, 3}, UsesDates: true},
		{Entity: cat, Query: "dateModified.specified=true", Want: []int64{3}, UsesDates: true},
		{Entity: cat, Query: "dateAdded.equals=2024-01-10", Want: []int64{1}, UsesDates: true},

		{Entity: prod, Query: "title.contains=Laptop", Want: []int64{2, 3}},
		{Entity: prod, Query: "title.contains=p_", Want: []int64{3}},
		{Entity: prod, Query: "keywords.contains=phone", Want: []int64{1}},
		{Entity: prod, Query: "keywords.specified=false", Want: []int64{2, 4}},
		{Entity: prod, Query: "keywords.notContains=light", Want: []int64{1}},
		{Entity: prod, Query: "rating.greaterThan=3", Want: []int64{1, 2}},
		{Entity: prod, Query: "rating.specified=false", Want: []int64{3}},
		{Entity: prod, Query: "categoryId.equals=3", Want: []int64{2, 3}},
		{Entity: prod, Query: "categoryId.specified=false", Want: []int64{4}},
		{Entity: prod, Query: "categoryId.in=1,2,3", Want: []int64{1, 2, 3}},
		{Entity: prod, Query: "categoryId.notEquals=1", Want: []int64{1, 2, 3}},
		{Entity: prod, Query: "dateAdded.lessThan=2024-02-17", Want: []int64{1, 2}, UsesDates: true},

		{Entity: cust, Query: "addressId.equals=3", Want: []int64{2}},
		{Entity: cust, Query: "addressId.specified=false", Want: []int64{3}},
		{Entity: cust, Query: "addressId.in=1,2", Want: []int64{1}},
		{Entity: cust, Query: "firstName.contains=A&lastName.notContains=ing", Want: []int64{1}},
		{Entity: cust, Query: "email.equals=grace%40example.com", Want: []int64{3}},
		{Entity: cust, Query: "telephone.specified=true", Want: []int64{1}},

		{Entity: addr, Query: "customerId.equals=1", Want: []int64{1, 2}},
		{Entity: addr, Query: "customerId.specified=false", Want: []int64{4}},
		{Entity: addr, Query: "customerId.notIn=1", Want: []int64{3}},
		{Entity: addr, Query: "country.in=UK,FR", Want: []int64{1, 2, 4}},
		{Entity: addr, Query: "city.contains=o&country.notEquals=UK", Want: []int64{3}},
		{Entity: addr, Query: "address2.specified=true", Want: []int64{2}},
		{Entity: addr, Query: "postcode.in=", Want: []int64{}},
	}
}

// PageScenario is one page request and the ids it must return, in order.
type PageScenario struct {
	Entity string
	Query  string
	Page   domain.PageRequest
	Want   []int64
	Total  int64
}

func (s PageScenario) Name() string {
	return fmt.Sprintf("%s?%s offset=%d limit=%d sort=%v", s.Entity, s.Query, s.Page.Offset, s.Page.Limit, s.Page.Sort)
}

// PageScenarios covers offsets with and without limits and the position of
// absent sort keys.
func PageScenarios() []PageScenario {
	const cat = shop.EntityCategory
	byOrder := func(dir domain.Direction) []domain.Order {
		return []domain.Order{{Field: "sortOrder", Direction: dir}}
	}
	return []PageScenario{
		{Entity: cat, Page: domain.PageRequest{Limit: 2}, Want: []int64{1, 2}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Offset: 2}, Want: []int64{3, 4, 5}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Offset: 2, Limit: 2}, Want: []int64{3, 4}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Offset: 9}, Want: []int64{}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Sort: byOrder(domain.Asc)}, Want: []int64{4, 1, 2, 3, 5}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Sort: byOrder(domain.Desc)}, Want: []int64{5, 3, 2, 1, 4}, Total: 5},
		{Entity: cat, Page: domain.PageRequest{Offset: 3, Sort: byOrder(domain.Asc)}, Want: []int64{3, 5}, Total: 5},
		{Entity: cat, Query: "sortOrder.greaterThan=1", Page: domain.PageRequest{Offset: 1, Limit: 1, Sort: byOrder(domain.Desc)}, Want: []int64{3}, Total: 3},
	}
}
