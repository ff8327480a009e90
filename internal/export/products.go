// Package export writes catalog data in spreadsheet-friendly formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"bookshop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var productHeader = []string{"sku", "name", "slug", "price", "discountPrice", "stock", "status", "category", "weight"}

// WriteProductsCSV writes one row per product. categories maps category ids
// to names; unknown ids are written as the hex id.
func WriteProductsCSV(w io.Writer, products []models.Product, categories map[primitive.ObjectID]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(productHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, p := range products {
		var category string
		if p.CategoryID != nil {
			category = categories[*p.CategoryID]
			if category == "" {
				category = p.CategoryID.Hex()
			}
		}
		row := []string{
			p.SKU,
			p.Name,
			p.Slug,
			money(p.Price),
			money(p.DiscountPrice),
			strconv.Itoa(p.Stock),
			string(p.Status),
			category,
			strconv.FormatFloat(p.Weight, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write %s: %w", p.SKU, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
