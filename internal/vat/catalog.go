package vat

import (
	_ "embed"

	"github.com/acted/rules-engine/internal/rule"
)

// Entry points of the VAT pipeline
const (
	EntryPointCheckout = "checkout_start"
	EntryPointPerItem  = "calculate_vat_per_item"
)

//go:embed catalog.yaml
var catalogData []byte

// Catalog returns the VAT rule pack: its schemas and rules
func Catalog() (rule.Catalog, error) {
	return rule.ParseYAMLCatalog(catalogData)
}
