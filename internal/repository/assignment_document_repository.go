package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

// AssignmentDocumentRepository is the MongoDB relation store for volunteer assignments.
// Missing documents are reported as sql.ErrNoRows so both stores share one contract.
type AssignmentDocumentRepository struct {
	col *mongo.Collection
}

// NewAssignmentDocumentRepository binds the repository to a collection.
func NewAssignmentDocumentRepository(db *mongo.Database, collection string) *AssignmentDocumentRepository {
	if collection == "" {
		collection = "assignments"
	}
	return &AssignmentDocumentRepository{col: db.Collection(collection)}
}

// EnsureIndexes creates lookup indexes. uniqueJoin adds a unique (volunteer_id, event_id)
// index so the store itself rejects a second join.
func (r *AssignmentDocumentRepository) EnsureIndexes(ctx context.Context, uniqueJoin bool) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("assignments_event_created"),
		},
		{
			Keys:    bson.D{{Key: "shift_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("assignments_shift_status"),
		},
		{
			Keys:    bson.D{{Key: "volunteer_id", Value: 1}},
			Options: options.Index().SetName("assignments_volunteer"),
		},
	}
	if uniqueJoin {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "volunteer_id", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("assignments_volunteer_event_unique"),
		})
	}
	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("assignment indexes: %w", err)
	}
	return nil
}

// Insert stores a new assignment document and returns its identifier.
func (r *AssignmentDocumentRepository) Insert(ctx context.Context, assignment *models.Assignment) (string, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusAssigned
	}

	if _, err := r.col.InsertOne(ctx, assignment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", appErrors.Wrap(err, appErrors.ErrAlreadyJoined.Code, appErrors.ErrAlreadyJoined.Status, appErrors.ErrAlreadyJoined.Message)
		}
		return "", fmt.Errorf("insert assignment document: %w", err)
	}
	return assignment.ID, nil
}

// Update applies a partial patch to an assignment document.
func (r *AssignmentDocumentRepository) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	set := bson.M{}
	if patch.ShiftID != nil {
		set["shift_id"] = *patch.ShiftID
		if patch.PlacedAt != nil {
			set["placed_at"] = *patch.PlacedAt
		} else {
			set["placed_at"] = nil
		}
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ConfirmedAt != nil {
		set["confirmed_at"] = *patch.ConfirmedAt
	}
	if patch.CheckedInAt != nil {
		set["checked_in_at"] = *patch.CheckedInAt
	}
	if patch.CheckedOutAt != nil {
		set["checked_out_at"] = *patch.CheckedOutAt
	}
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update assignment document: %w", err)
	}
	if res.MatchedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment document.
func (r *AssignmentDocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete assignment document: %w", err)
	}
	if res.DeletedCount == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Query returns assignment documents matching the filter ordered by creation time.
func (r *AssignmentDocumentRepository) Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, documentFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("query assignment documents: %w", err)
	}
	defer cur.Close(ctx)

	var result []models.Assignment
	for cur.Next(ctx) {
		var a models.Assignment
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode assignment document: %w", err)
		}
		result = append(result, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("assignment documents cursor: %w", err)
	}
	return result, nil
}

// Count returns the number of documents matching the filter.
func (r *AssignmentDocumentRepository) Count(ctx context.Context, filter models.AssignmentFilter) (int, error) {
	n, err := r.col.CountDocuments(ctx, documentFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count assignment documents: %w", err)
	}
	return int(n), nil
}

// CountByStatus groups documents by status. An empty event ID spans all events.
func (r *AssignmentDocumentRepository) CountByStatus(ctx context.Context, eventID string) ([]models.StatusCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: documentFilter(models.AssignmentFilter{EventID: eventID})}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate assignment statuses: %w", err)
	}
	defer cur.Close(ctx)

	var groups []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode assignment statuses: %w", err)
	}
	rows := make([]models.StatusCount, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, models.StatusCount{Status: g.Status, Count: g.Count})
	}
	return rows, nil
}

func documentFilter(filter models.AssignmentFilter) bson.M {
	query := bson.M{}
	if filter.EventID != "" {
		query["event_id"] = filter.EventID
	}
	if filter.ShiftID != "" {
		query["shift_id"] = filter.ShiftID
	}
	if filter.VolunteerID != "" {
		query["volunteer_id"] = filter.VolunteerID
	}
	if len(filter.Statuses) > 0 {
		statuses := make(bson.A, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query["status"] = bson.M{"$in": statuses}
	}
	return query
}
