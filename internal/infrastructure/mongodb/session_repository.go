package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/freight-service/internal/domain"
)

// SessionRepository persists packing session snapshots. Saves are full
// upserts keyed by sessionId: the session service serializes writes per
// session, so last write wins is safe here.
type SessionRepository struct {
	collection *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	repo := &SessionRepository{
		collection: db.Collection("packing_sessions"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *SessionRepository) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "transferId", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.PackingSession) error {
	session.UpdatedAt = time.Now().UTC()

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"sessionId": session.SessionID}
	update := bson.M{"$set": session}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save packing session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.PackingSession, error) {
	var session domain.PackingSession
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &session, err
}

// FindActiveByTransferID skips completed sessions so a finished transfer can
// be packed again. A transfer holds at most one non-completed session.
func (r *SessionRepository) FindActiveByTransferID(ctx context.Context, transferID string) (*domain.PackingSession, error) {
	filter := bson.M{
		"transferId": transferID,
		"state":      bson.M{"$ne": string(domain.SessionStateCompleted)},
	}

	var session domain.PackingSession
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &session, err
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	return err
}
