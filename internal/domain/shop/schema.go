package shop

import (
	_ "embed"
	"strings"

	"metaquery/internal/metadata"
)

// Entity names.
const (
	EntityCategory = "Category"
	EntityProduct  = "Product"
	EntityCustomer = "Customer"
	EntityAddress  = "Address"
)

// CategoryProductLink is the many-to-many link table between categories and products.
const CategoryProductLink = "rel_category__product"

// SchemaSQL creates the shop tables. It is portable across SQLite, PostgreSQL and MySQL.
//
//go:embed schema.sql
var SchemaSQL string

// Tables lists the shop tables in an order safe for dropping them.
var Tables = []string{"address", "customer", CategoryProductLink, "product", "category"}

// SchemaStatements splits SchemaSQL into single statements for drivers that
// execute one statement per call.
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(SchemaSQL, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func CategoryDef() metadata.EntityDef {
	return metadata.Inspect(Category{}, EntityCategory, "category").
		WithRelation(metadata.ManyToOneRelation("parentId", EntityCategory, "category", "parent_id")).
		WithRelation(metadata.ManyToManyRelation("productId", EntityProduct, "product",
			CategoryProductLink, "category_id", "product_id")).
		Normalize()
}

func ProductDef() metadata.EntityDef {
	return metadata.Inspect(Product{}, EntityProduct, "product").
		WithRelation(metadata.ManyToManyRelation("categoryId", EntityCategory, "category",
			CategoryProductLink, "product_id", "category_id")).
		Normalize()
}

func CustomerDef() metadata.EntityDef {
	return metadata.Inspect(Customer{}, EntityCustomer, "customer").
		WithRelation(metadata.OneToManyRelation("addressId", EntityAddress, "address", "customer_id")).
		Normalize()
}

func AddressDef() metadata.EntityDef {
	return metadata.Inspect(Address{}, EntityAddress, "address").
		WithRelation(metadata.ManyToOneRelation("customerId", EntityCustomer, "customer", "customer_id")).
		Normalize()
}

// Registry returns a registry holding the four shop entities.
func Registry() *metadata.Registry {
	return metadata.NewRegistry().MustRegister(CategoryDef(), ProductDef(), CustomerDef(), AddressDef())
}
