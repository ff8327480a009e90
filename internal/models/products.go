package models

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductFilter struct {
	Search     string
	CategoryID *primitive.ObjectID
	Status     ProductStatus
	MinPrice   float64
	MaxPrice   float64
	InStock    bool
	Sort       string
}

func (f ProductFilter) BSON() bson.M {
	filter := bson.M{}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"sku": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	if f.CategoryID != nil {
		filter["categoryId"] = *f.CategoryID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		price := bson.M{}
		if f.MinPrice > 0 {
			price["$gte"] = f.MinPrice
		}
		if f.MaxPrice > 0 {
			price["$lte"] = f.MaxPrice
		}
		filter["price"] = price
	}
	if f.InStock {
		filter["stock"] = bson.M{"$gt": 0}
	}
	return filter
}

// SortBSON maps the public sort keys onto a sort document. Ties are broken
// by _id so paging is stable.
func (f ProductFilter) SortBSON() bson.D {
	switch f.Sort {
	case "price_asc":
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case "price_desc":
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case "name":
		return bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func (m *MongoDB) InsertProduct(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = ProductDraft
	}
	_, err := m.Products.InsertOne(ctx, p)
	return translate(err)
}

func (m *MongoDB) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"sku":           p.SKU,
			"name":          p.Name,
			"slug":          p.Slug,
			"description":   p.Description,
			"images":        p.Images,
			"categoryId":    p.CategoryID,
			"price":         p.Price,
			"discountPrice": p.DiscountPrice,
			"stock":         p.Stock,
			"tax":           p.Tax,
			"weight":        p.Weight,
			"weightUnit":    p.WeightUnit,
			"dimensions":    p.Dimensions,
			"status":        p.Status,
			"updatedAt":     p.UpdatedAt,
		},
	}
	res, err := m.Products.UpdateOne(ctx, bson.M{"_id": p.ID}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.Products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) GetProduct(ctx context.Context, id primitive.ObjectID) (*Product, error) {
	var p Product
	err := m.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (m *MongoDB) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	err := m.Products.FindOne(ctx, bson.M{"slug": slug}).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (m *MongoDB) GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Product, error) {
	products, err := findAll[*Product](ctx, m.Products, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]*Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (m *MongoDB) ListProducts(ctx context.Context, f ProductFilter, page, limit int) (*Page[*Product], error) {
	return paginate[*Product](ctx, m.Products, f.BSON(), f.SortBSON(), page, limit)
}

// AllProducts returns every product ordered by SKU, for export.
func (m *MongoDB) AllProducts(ctx context.Context) ([]*Product, error) {
	return findAll[*Product](ctx, m.Products, bson.M{}, options.Find().SetSort(bson.D{{Key: "sku", Value: 1}}))
}

// DecrementStock removes qty units only when that much stock is on hand.
func (m *MongoDB) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	filter := bson.M{"_id": id, "stock": bson.M{"$gte": qty}}
	update := bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updatedAt": time.Now().UTC()}}
	res, err := m.Products.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *MongoDB) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	_, err := m.Products.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"stock": qty}})
	return err
}

func (m *MongoDB) CountProducts(ctx context.Context) (int64, error) {
	return m.Products.CountDocuments(ctx, bson.M{})
}

func (m *MongoDB) LowStockProducts(ctx context.Context, threshold int) ([]*Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}).SetLimit(50)
	return findAll[*Product](ctx, m.Products, bson.M{"status": ProductActive, "stock": bson.M{"$lte": threshold}}, opts)
}
