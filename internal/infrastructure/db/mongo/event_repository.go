package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const collectionAuthEvents = "auth_events"

// EventRepository implements ports.AuthEventRepository using MongoDB.
type EventRepository struct {
	col *mongo.Collection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database) ports.AuthEventRepository {
	return &EventRepository{col: db.Collection(collectionAuthEvents)}
}

// InsertEvent appends an authentication event to the auth_events audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"kind":        string(event.Kind),
		"username":    event.Username,
		"occurred_at": event.OccurredAt.UTC(),
		"stored_at":   time.Now().UTC(),
	}
	if event.Identifier != "" {
		doc["identifier"] = event.Identifier
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}
