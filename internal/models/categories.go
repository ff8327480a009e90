package models

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// categoryFilter is the one place active-only category queries are built, so
// deactivated categories never leak into storefront listings.
func categoryFilter(activeOnly bool) bson.M {
	if activeOnly {
		return bson.M{"isActive": true}
	}
	return bson.M{}
}

func (m *MongoDB) InsertCategory(ctx context.Context, c *Category) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.IsActive = true
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := m.Categories.InsertOne(ctx, c)
	return translate(err)
}

func (m *MongoDB) UpdateCategory(ctx context.Context, c *Category) error {
	c.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"parentId":    c.ParentID,
		"isActive":    c.IsActive,
		"updatedAt":   c.UpdatedAt,
	}}
	res, err := m.Categories.UpdateOne(ctx, bson.M{"_id": c.ID}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

// DeactivateCategory is the category delete: the document stays so products
// and old orders keep a valid reference.
func (m *MongoDB) DeactivateCategory(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	res, err := m.Categories.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoRecord
	}
	return nil
}

func (m *MongoDB) GetCategory(ctx context.Context, id primitive.ObjectID) (*Category, error) {
	var c Category
	if err := m.Categories.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (m *MongoDB) ListCategories(ctx context.Context, activeOnly bool) ([]*Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cats, err := findAll[*Category](ctx, m.Categories, categoryFilter(activeOnly), opts)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []*Category{}
	}
	return cats, nil
}

func (m *MongoDB) CategoryTree(ctx context.Context) ([]*CategoryNode, error) {
	cats, err := m.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	return BuildCategoryTree(cats), nil
}

// BuildCategoryTree links categories through their parent pointers. A
// category whose parent is missing from cats (deactivated or deleted) becomes
// a root, and so does the first category by name of any parent cycle.
func BuildCategoryTree(cats []*Category) []*CategoryNode {
	nodes := make(map[primitive.ObjectID]*CategoryNode, len(cats))
	for _, c := range cats {
		nodes[c.ID] = &CategoryNode{Category: c, Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for _, c := range cats {
		n := nodes[c.ID]
		if c.ParentID != nil && *c.ParentID != c.ID {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	reached := make(map[primitive.ObjectID]bool, len(nodes))
	var mark func(*CategoryNode)
	mark = func(n *CategoryNode) {
		if reached[n.ID] {
			return
		}
		reached[n.ID] = true
		for _, child := range n.Children {
			mark(child)
		}
	}
	for _, n := range roots {
		mark(n)
	}

	var cut []*CategoryNode
	for _, n := range nodes {
		if !reached[n.ID] {
			cut = append(cut, n)
		}
	}
	sort.Slice(cut, func(i, j int) bool { return nodeLess(cut[i], cut[j]) })
	for _, n := range cut {
		if reached[n.ID] {
			continue
		}
		parent := nodes[*n.ParentID]
		for i, child := range parent.Children {
			if child == n {
				parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
				break
			}
		}
		roots = append(roots, n)
		mark(n)
	}

	var sortNodes func([]*CategoryNode)
	sortNodes = func(ns []*CategoryNode) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].Name < ns[j].Name })
		for _, n := range ns {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)
	return roots
}

func nodeLess(a, b *CategoryNode) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.Hex() < b.ID.Hex()
}

// ParentCreatesCycle reports whether giving category id the parent parentID
// would make id its own ancestor.
func ParentCreatesCycle(cats []*Category, id, parentID primitive.ObjectID) bool {
	parents := make(map[primitive.ObjectID]*primitive.ObjectID, len(cats))
	for _, c := range cats {
		parents[c.ID] = c.ParentID
	}
	seen := map[primitive.ObjectID]bool{}
	for cur := &parentID; cur != nil; cur = parents[*cur] {
		if *cur == id {
			return true
		}
		if seen[*cur] {
			return false
		}
		seen[*cur] = true
	}
	return false
}
