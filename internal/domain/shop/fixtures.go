package shop

import (
	"time"

	"metaquery/internal/metadata"
)

// Fixtures is a small consistent data set: relation slices on both sides of
// every relation agree with each other.
type Fixtures struct {
	Categories []Category
	Products   []Product
	Customers  []Customer
	Addresses  []Address
}

// Link is one row of the category/product link table.
type Link struct {
	CategoryID int64 `db:"category_id"`
	ProductID  int64 `db:"product_id"`
}

// Links derives the link table rows from the categories.
func (f Fixtures) Links() []Link {
	var out []Link
	for _, c := range f.Categories {
		for _, p := range c.ProductIDs {
			out = append(out, Link{CategoryID: c.ID, ProductID: p})
		}
	}
	return out
}

// TableRows holds the rows of one table, keyed by column.
type TableRows struct {
	Table string
	Rows  []map[string]any
}

// Tables returns the fixture rows per table in insertion order.
func (f Fixtures) Tables() []TableRows {
	return []TableRows{
		{Table: "category", Rows: rowMaps(f.Categories)},
		{Table: "product", Rows: rowMaps(f.Products)},
		{Table: CategoryProductLink, Rows: rowMaps(f.Links())},
		{Table: "customer", Rows: rowMaps(f.Customers)},
		{Table: "address", Rows: rowMaps(f.Addresses)},
	}
}

func rowMaps[T any](records []T) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, metadata.RowMap(r))
	}
	return out
}

// WithoutDates returns a copy with every date cleared, for stores that do not
// round-trip DATE columns.
func (f Fixtures) WithoutDates() Fixtures {
	out := Fixtures{
		Categories: append([]Category(nil), f.Categories...),
		Products:   append([]Product(nil), f.Products...),
		Customers:  f.Customers,
		Addresses:  f.Addresses,
	}
	for i := range out.Categories {
		out.Categories[i].DateAdded, out.Categories[i].DateModified = nil, nil
	}
	for i := range out.Products {
		out.Products[i].DateAdded, out.Products[i].DateModified = nil, nil
	}
	return out
}

// SampleData returns the demo catalogue.
func SampleData() Fixtures {
	status := func(s CategoryStatus) *CategoryStatus { return &s }
	i32 := func(n int32) *int32 { return &n }
	i64 := func(n int64) *int64 { return &n }
	str := func(s string) *string { return &s }
	day := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	return Fixtures{
		Categories: []Category{
			{ID: 1, Description: "Electronics", SortOrder: i32(1), DateAdded: day(2024, 1, 10), Status: status(StatusAvailable), ProductIDs: []int64{1, 2}},
			{ID: 2, Description: "Phones", SortOrder: i32(2), DateAdded: day(2024, 2, 1), Status: status(StatusAvailable), ParentID: i64(1), ProductIDs: []int64{1}},
			{ID: 3, Description: "Laptops", SortOrder: i32(3), DateAdded: day(2024, 2, 15), DateModified: day(2024, 3, 1), Status: status(StatusRestricted), ParentID: i64(1), ProductIDs: []int64{2, 3}},
			{ID: 4, Description: "Archive", Status: status(StatusDisabled)},
			{ID: 5, Description: "Misc 100%", SortOrder: i32(5), DateAdded: day(2024, 4, 1), ParentID: i64(4)},
		},
		Products: []Product{
			{ID: 1, Title: "Phone X", Keywords: str("phone,mobile"), Rating: i32(5), DateAdded: day(2024, 2, 2), CategoryIDs: []int64{1, 2}},
			{ID: 2, Title: "Laptop Pro", Description: str("15 inch"), Rating: i32(4), DateAdded: day(2024, 2, 16), CategoryIDs: []int64{1, 3}},
			{ID: 3, Title: "Laptop_Air", Keywords: str("light"), DateAdded: day(2024, 2, 20), CategoryIDs: []int64{3}},
			{ID: 4, Title: "Cable", Rating: i32(2)},
		},
		Customers: []Customer{
			{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Telephone: str("+44 20 7946 0000"), AddressIDs: []int64{1, 2}},
			{ID: 2, FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", AddressIDs: []int64{3}},
			{ID: 3, FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"},
		},
		Addresses: []Address{
			{ID: 1, Address1: "1 Main St", City: "London", Postcode: "N1", Country: "UK", CustomerID: i64(1)},
			{ID: 2, Address1: "2 High St", Address2: str("Flat 3"), City: "Bath", Postcode: "BA1", Country: "UK", CustomerID: i64(1)},
			{ID: 3, Address1: "3 Park Ave", City: "New York", Postcode: "10001", Country: "US", CustomerID: i64(2)},
			{ID: 4, Address1: "4 Rue Nulle", City: "Paris", Postcode: "75001", Country: "FR"},
		},
	}
}
