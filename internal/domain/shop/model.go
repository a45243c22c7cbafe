// Package shop is a small catalogue domain used to exercise the query engine
// end to end: categories, products, customers and their addresses.
package shop

import "time"

// CategoryStatus is the lifecycle state of a category.
type CategoryStatus string

const (
	StatusAvailable  CategoryStatus = "AVAILABLE"
	StatusRestricted CategoryStatus = "RESTRICTED"
	StatusDisabled   CategoryStatus = "DISABLED"
	StatusDeleted    CategoryStatus = "DELETED"
)

// Category groups products and can nest under a parent category.
type Category struct {
	ID           int64           `db:"id" json:"id"`
	Description  string          `db:"description" json:"description"`
	SortOrder    *int32          `db:"sort_order" json:"sortOrder,omitempty"`
	DateAdded    *time.Time      `db:"date_added" json:"dateAdded,omitempty" filter:"type=date"`
	DateModified *time.Time      `db:"date_modified" json:"dateModified,omitempty" filter:"type=date"`
	Status       *CategoryStatus `db:"status" json:"status,omitempty" filter:"type=enum,options=AVAILABLE|RESTRICTED|DISABLED|DELETED"`
	ParentID     *int64          `db:"parent_id" json:"parentId,omitempty" filter:"-"`
	ProductIDs   []int64         `db:"-" gorm:"-" json:"productIds,omitempty"`
}

// Related returns the values of a relation's target field for this record.
func (c Category) Related(relation string) []any {
	switch relation {
	case "parentId":
		return optional(c.ParentID)
	case "productId":
		return ids(c.ProductIDs)
	}
	return nil
}

type Product struct {
	ID           int64      `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Keywords     *string    `db:"keywords" json:"keywords,omitempty"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Rating       *int32     `db:"rating" json:"rating,omitempty"`
	DateAdded    *time.Time `db:"date_added" json:"dateAdded,omitempty" filter:"type=date"`
	DateModified *time.Time `db:"date_modified" json:"dateModified,omitempty" filter:"type=date"`
	CategoryIDs  []int64    `db:"-" gorm:"-" json:"categoryIds,omitempty"`
}

func (p Product) Related(relation string) []any {
	if relation == "categoryId" {
		return ids(p.CategoryIDs)
	}
	return nil
}

type Customer struct {
	ID         int64   `db:"id" json:"id"`
	FirstName  string  `db:"first_name" json:"firstName"`
	LastName   string  `db:"last_name" json:"lastName"`
	Email      string  `db:"email" json:"email"`
	Telephone  *string `db:"telephone" json:"telephone,omitempty"`
	AddressIDs []int64 `db:"-" gorm:"-" json:"addressIds,omitempty"`
}

func (c Customer) Related(relation string) []any {
	if relation == "addressId" {
		return ids(c.AddressIDs)
	}
	return nil
}

type Address struct {
	ID         int64   `db:"id" json:"id"`
	Address1   string  `db:"address1" json:"address1"`
	Address2   *string `db:"address2" json:"address2,omitempty"`
	City       string  `db:"city" json:"city"`
	Postcode   string  `db:"postcode" json:"postcode"`
	Country    string  `db:"country" json:"country"`
	CustomerID *int64  `db:"customer_id" json:"customerId,omitempty" filter:"-"`
}

func (a Address) Related(relation string) []any {
	if relation == "customerId" {
		return optional(a.CustomerID)
	}
	return nil
}

func optional(id *int64) []any {
	if id == nil {
		return nil
	}
	return []any{*id}
}

func ids(list []int64) []any {
	out := make([]any, len(list))
	for i, id := range list {
		out[i] = id
	}
	return out
}
