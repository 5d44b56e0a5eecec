package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// WeightRepository reads product weight data recorded by the catalogue.
// Measured weights come straight off the product documents; category
// averages are aggregated server-side over products sharing a category.
type WeightRepository struct {
	products *mongo.Collection
}

func NewWeightRepository(db *mongo.Database) *WeightRepository {
	return &WeightRepository{
		products: db.Collection("products"),
	}
}

// MeasuredWeights returns per-product recorded weights in grams. Products
// without a positive recorded weight are absent from the result.
func (r *WeightRepository) MeasuredWeights(ctx context.Context, productIDs []string) (map[string]int, error) {
	cursor, err := r.products.Find(ctx, bson.M{
		"productId":   bson.M{"$in": productIDs},
		"weightGrams": bson.M{"$gt": 0},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	weights := make(map[string]int)
	for cursor.Next(ctx) {
		var doc struct {
			ProductID   string `bson:"productId"`
			WeightGrams int    `bson:"weightGrams"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		weights[doc.ProductID] = doc.WeightGrams
	}
	return weights, cursor.Err()
}

// CategoryAverageWeights aggregates the mean recorded weight of each target
// product's category. Products whose category has no recorded weights are
// absent from the result.
func (r *WeightRepository) CategoryAverageWeights(ctx context.Context, productIDs []string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": bson.M{"$in": productIDs}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": r.products.Name(),
			"let":  bson.M{"category": "$categoryId"},
			"pipeline": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$categoryId", "$$category"}},
					bson.M{"$gt": bson.A{"$weightGrams", 0}},
				}}}}},
				{{Key: "$group", Value: bson.M{
					"_id":       nil,
					"avgWeight": bson.M{"$avg": "$weightGrams"},
				}}},
			},
			"as": "categoryStats",
		}}},
		{{Key: "$unwind", Value: "$categoryStats"}},
		{{Key: "$project", Value: bson.M{
			"productId": 1,
			"avgWeight": "$categoryStats.avgWeight",
		}}},
	}

	cursor, err := r.products.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	weights := make(map[string]int)
	for cursor.Next(ctx) {
		var doc struct {
			ProductID string  `bson:"productId"`
			AvgWeight float64 `bson:"avgWeight"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.AvgWeight > 0 {
			weights[doc.ProductID] = int(doc.AvgWeight + 0.5)
		}
	}
	return weights, cursor.Err()
}
