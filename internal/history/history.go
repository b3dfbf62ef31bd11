// Package history persists the append-only price time series in MongoDB.
//
// Each detected price change produces one immutable point. Points are never
// mutated or deleted here; the startup bootstrap folds them back into the
// in-memory cache with a single aggregation (latest point per product plus
// the running minimum price).
package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const collectionName = "product_prices"

// Point is one observed price for a product at a moment in time.
type Point struct {
	ProductID string    `bson:"productId" json:"productId"`
	Time      time.Time `bson:"time" json:"time"`
	Price     int       `bson:"price" json:"price"`
	IsSoldOut bool      `bson:"isSoldOut" json:"isSoldOut"`
}

// Snapshot is the per-product result of the bootstrap aggregation: the most
// recent price and availability plus the minimum price ever recorded.
type Snapshot struct {
	ProductID   string `bson:"_id"`
	Price       int    `bson:"price"`
	IsSoldOut   bool   `bson:"isSoldOut"`
	LowestPrice int    `bson:"lowestPrice"`
}

// Store is a MongoDB-backed price history store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a MongoDB client, verifies connectivity, and ensures the
// productId+time index exists.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "productId", Value: 1}, {Key: "time", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history index: %w", err)
	}

	return &Store{client: client, coll: coll}, nil
}

// Append writes a single price point.
func (s *Store) Append(ctx context.Context, p Point) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("append price point: %w", err)
	}
	return nil
}

// AppendBatch writes all price points of one reconciliation cycle at once.
func (s *Store) AppendBatch(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	docs := make([]interface{}, len(points))
	for i, p := range points {
		docs[i] = p
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("append price points: %w", err)
	}
	return nil
}

// LatestAndMin computes, for every product with history, the most recent
// price and sold-out flag together with the minimum price across all points,
// in a single aggregation over the whole collection.
func (s *Store) LatestAndMin(ctx context.Context) ([]Snapshot, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "time", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$productId"},
			{Key: "price", Value: bson.D{{Key: "$first", Value: "$price"}}},
			{Key: "isSoldOut", Value: bson.D{{Key: "$first", Value: "$isSoldOut"}}},
			{Key: "lowestPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate latest and min: %w", err)
	}
	defer cursor.Close(ctx)

	var snapshots []Snapshot
	if err := cursor.All(ctx, &snapshots); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	return snapshots, nil
}

// Range returns the price points for a product between from and to,
// oldest first.
func (s *Store) Range(ctx context.Context, productID string, from, to time.Time) ([]Point, error) {
	filter := bson.D{
		{Key: "productId", Value: productID},
		{Key: "time", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lte", Value: to},
		}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query price range: %w", err)
	}
	defer cursor.Close(ctx)

	var points []Point
	if err := cursor.All(ctx, &points); err != nil {
		return nil, fmt.Errorf("decode price points: %w", err)
	}
	return points, nil
}

// HealthCheck verifies the history store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
