package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookshop/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserRepository struct {
	Collection *mongo.Collection
}

func (m *UserRepository) Insert(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: string(hashedPassword),
		Role:         role,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = m.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (m *UserRepository) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := m.Collection.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return &user, nil
}

func (m *UserRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := m.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := m.Collection.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *UserRepository) List(ctx context.Context, page, limit int) (*models.Page[*models.User], error) {
	total, err := m.Collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	pg := models.NewPagination(total, page, limit)

	cur, err := m.Collection.Find(ctx, bson.M{}, findPage(pg))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []*models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return &models.Page[*models.User]{Data: users, Pagination: pg}, nil
}

func (m *UserRepository) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	return m.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
}

// SetPassword replaces the password hash, used by the create-admin command to
// reset an existing account.
func (m *UserRepository) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	return m.update(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"passwordHash": string(hashed)}})
}

func (m *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNoRecord
	}
	return nil
}

// AddAddress appends a to the user's address book. The first address becomes
// the default.
func (m *UserRepository) AddAddress(ctx context.Context, userID primitive.ObjectID, a models.Address) (*models.Address, error) {
	user, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.ID = primitive.NewObjectID()

	update := bson.M{"$push": bson.M{"addresses": a}}
	if user.DefaultAddressID == nil {
		update["$set"] = bson.M{"defaultAddressId": a.ID}
	}
	if err := m.update(ctx, bson.M{"_id": userID}, update); err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *UserRepository) UpdateAddress(ctx context.Context, userID primitive.ObjectID, a models.Address) error {
	filter := bson.M{"_id": userID, "addresses._id": a.ID}
	return m.update(ctx, filter, bson.M{"$set": bson.M{"addresses.$": a}})
}

// RemoveAddress pulls the address and clears the default reference when it
// pointed at it.
func (m *UserRepository) RemoveAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	filter := bson.M{"_id": userID, "addresses._id": addressID}
	if err := m.update(ctx, filter, bson.M{"$pull": bson.M{"addresses": bson.M{"_id": addressID}}}); err != nil {
		return err
	}
	_, err := m.Collection.UpdateOne(ctx,
		bson.M{"_id": userID, "defaultAddressId": addressID},
		bson.M{"$unset": bson.M{"defaultAddressId": ""}},
	)
	return err
}

func (m *UserRepository) SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) error {
	filter := bson.M{"_id": userID, "addresses._id": addressID}
	return m.update(ctx, filter, bson.M{"$set": bson.M{"defaultAddressId": addressID}})
}

func (m *UserRepository) update(ctx context.Context, filter, update bson.M) error {
	if set, ok := update["$set"].(bson.M); ok {
		set["updatedAt"] = time.Now().UTC()
	} else {
		update["$set"] = bson.M{"updatedAt": time.Now().UTC()}
	}
	res, err := m.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNoRecord
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findPage(pg models.Pagination) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(pg.Skip()).
		SetLimit(int64(pg.Limit))
}
