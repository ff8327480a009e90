package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"bookshop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWriteProductsCSVRoundTripsCommasAndQuotes(t *testing.T) {
	cat := primitive.NewObjectID()
	products := []models.Product{
		{SKU: "BK-1", Name: `Dune, Deluxe "Hardcover"`, Slug: "dune", Price: 499, DiscountPrice: 449.5, Stock: 3, Status: models.ProductActive, CategoryID: &cat, Weight: 0.8},
		{SKU: "BK-2", Name: "Line\nbreak", Slug: "lb", Price: 10, Status: models.ProductDraft},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteProductsCSV(&buf, products, map[primitive.ObjectID]string{cat: "Sci-Fi, Classic"}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, productHeader, rows[0])
	assert.Equal(t, []string{"BK-1", `Dune, Deluxe "Hardcover"`, "dune", "499.00", "449.50", "3", "active", "Sci-Fi, Classic", "0.8"}, rows[1])
	assert.Equal(t, "Line\nbreak", rows[2][1])
	assert.Equal(t, "", rows[2][7])
}

func TestWriteProductsCSVUnknownCategoryFallsBackToID(t *testing.T) {
	cat := primitive.NewObjectID()
	var buf bytes.Buffer
	require.NoError(t, WriteProductsCSV(&buf, []models.Product{{SKU: "X", CategoryID: &cat}}, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, cat.Hex(), rows[1][7])
}
