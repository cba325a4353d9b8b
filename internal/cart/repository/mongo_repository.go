package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartdepot/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

const (
	cartsCollection = "carts"
	cartTTL         = 90 * 24 * time.Hour
)

type MongoRepository struct {
	carts *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{carts: db.Collection(cartsCollection)}
}

func byUser(userID int64) bson.M { return bson.M{"user_id": userID} }

// touch marks the cart as written, which also restarts its TTL.
func touch(now time.Time) bson.M { return bson.M{"updated_at": now} }

func (m *MongoRepository) Load(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	switch err := m.carts.FindOne(ctx, byUser(userID)).Decode(&cart); {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrCartNotFound
	case err != nil:
		return nil, fmt.Errorf("load cart of user %d: %w", userID, err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// PutItem sets the quantity of a product in the cart, creating the cart or
// the line as needed.
func (m *MongoRepository) PutItem(ctx context.Context, userID int64, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	err := m.SetQuantity(ctx, userID, item.ProductID, item.Quantity)
	if !errors.Is(err, ErrItemNotFound) {
		return err
	}

	// new line, upserting the cart document
	_, err = m.carts.UpdateOne(ctx, byUser(userID),
		bson.M{
			"$push":        bson.M{"items": item},
			"$set":         touch(now),
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("push cart line for product %d: %w", item.ProductID, err)
	}
	return nil
}

// SetQuantity rewrites an existing line through the positional operator.
func (m *MongoRepository) SetQuantity(ctx context.Context, userID int64, productID int64, quantity int32) error {
	now := time.Now()
	res, err := m.carts.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{"$set": bson.M{
			"items.$.quantity": quantity,
			"items.$.added_at": now,
			"updated_at":       now,
		}})
	if err != nil {
		return fmt.Errorf("set quantity of product %d: %w", productID, err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveProducts(ctx context.Context, userID int64, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	res, err := m.carts.UpdateOne(ctx, byUser(userID), bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": bson.M{"$in": productIDs}}},
		"$set":  touch(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("remove products from cart of user %d: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := m.carts.DeleteOne(ctx, byUser(userID)); err != nil {
		return fmt.Errorf("clear cart of user %d: %w", userID, err)
	}
	return nil
}

// EnsureIndexes creates the unique owner index and the idle-cart TTL index.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.carts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("carts_user_id_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("carts_idle_ttl").
				SetExpireAfterSeconds(int32(cartTTL / time.Second)),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure cart indexes: %w", err)
	}
	return nil
}
