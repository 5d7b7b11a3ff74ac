package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aitraveller/trip-bookings/internal/domain"
	"github.com/aitraveller/trip-bookings/internal/observability"
)

// CatalogRepository serves per-destination base prices used when a trip
// descriptor arrives without one.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("destinations"),
		logger: logger,
	}
}

type DestinationDoc struct {
	Name      string    `bson:"_id"`
	BasePrice int64     `bson:"base_price"`
	Currency  string    `bson:"currency"`
	Region    string    `bson:"region,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (c *CatalogRepository) BasePrice(ctx context.Context, destination string) (int64, error) {
	var doc DestinationDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": destination}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to look up destination", err)
		return 0, err
	}
	return doc.BasePrice, nil
}

func (c *CatalogRepository) UpsertDestination(ctx context.Context, doc DestinationDoc) error {
	doc.UpdatedAt = time.Now()
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": doc.Name},
		bson.M{
			"$set":         bson.M{"base_price": doc.BasePrice, "currency": doc.Currency, "region": doc.Region, "updated_at": doc.UpdatedAt},
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.Error("failed to upsert destination", err)
	}
	return err
}
