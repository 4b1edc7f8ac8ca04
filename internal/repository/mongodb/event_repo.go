package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventhub/internal/domain"
)

// EventsCollection is the collection holding event documents.
const EventsCollection = "events"

type eventRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewEventRepository(db *mongo.Database) domain.EventRepository {
	return &eventRepository{
		coll: db.Collection(EventsCollection),
		now:  time.Now,
	}
}

// EnsureIndexes creates the indexes used by event listings.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(EventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}}},
		{Keys: bson.D{{Key: "deletion_requested", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

// listProjection keeps registrant details out of listings.
var listProjection = bson.D{
	{Key: "registrations", Value: 0},
	{Key: "sub_events.registrations", Value: 0},
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.ErrNotFound
	}
	return oid, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	doc := newEventDocument(e)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	created := doc.toDomain()
	e.ID = created.ID
	e.SubEvents = created.SubEvents
	e.Coordinators = created.Coordinators
	e.Links = created.Links
	e.Registrations = created.Registrations
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc eventDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return doc.toDomain(), nil
}

func buildFilter(f domain.EventFilter) bson.D {
	filter := bson.D{}
	if len(f.Statuses) > 0 {
		statuses := make(bson.A, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		statusCond := bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}}
		if f.IncludeCreatorID != "" {
			filter = append(filter, bson.E{Key: "$or", Value: bson.A{
				bson.D{statusCond},
				bson.D{{Key: "creator", Value: f.IncludeCreatorID}},
			}})
		} else {
			filter = append(filter, statusCond)
		}
	}
	if f.CreatorID != "" {
		filter = append(filter, bson.E{Key: "creator", Value: f.CreatorID})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	if f.Search != "" {
		filter = append(filter, bson.E{Key: "title", Value: primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}})
	}
	if f.DeletionRequested != nil {
		filter = append(filter, bson.E{Key: "deletion_requested", Value: *f.DeletionRequested})
	}
	return filter
}

func (r *eventRepository) List(ctx context.Context, f domain.EventFilter, page domain.PaginationParams) ([]*domain.Event, int, error) {
	filter := buildFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	opts := options.Find().
		SetProjection(listProjection).
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.PageSize))
	events, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return events, int(total), nil
}

func (r *eventRepository) ListByIDs(ctx context.Context, ids []string) ([]*domain.Event, error) {
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*domain.Event{}, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}}
	return r.find(ctx, filter, options.Find().SetProjection(listProjection).SetSort(bson.D{{Key: "date", Value: 1}}))
}

func (r *eventRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*domain.Event, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer cur.Close(ctx)
	events := make([]*domain.Event, 0)
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// findOneAndUpdate applies update to the single document matching filter and
// returns it as it is after the update.
func (r *eventRepository) findOneAndUpdate(ctx context.Context, filter, update bson.D) (*domain.Event, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc eventDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *eventRepository) Update(ctx context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.D{{Key: "updated_at", Value: r.now()}}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *p.Description})
	}
	if p.Date != nil {
		set = append(set, bson.E{Key: "date", Value: *p.Date})
	}
	if p.Location != nil {
		set = append(set, bson.E{Key: "location", Value: *p.Location})
	}
	if p.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *p.Category})
	}
	if p.Coordinators != nil {
		set = append(set, bson.E{Key: "coordinators", Value: toCoordinatorDocuments(*p.Coordinators)})
	}
	if p.Links != nil {
		set = append(set, bson.E{Key: "links", Value: toLinkDocuments(*p.Links)})
	}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*p.Status)})
	}
	return r.findOneAndUpdate(ctx, updateFilter(oid, p), bson.D{{Key: "$set", Value: set}})
}

// updateFilter matches the event only while the patch is still allowed: a
// completion needs the event to be approved, any other edit needs it to not
// be rejected.
func updateFilter(oid primitive.ObjectID, p domain.EventPatch) bson.D {
	if p.Status != nil {
		return bson.D{{Key: "_id", Value: oid}, {Key: "status", Value: string(domain.EventStatusApproved)}}
	}
	return bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: string(domain.EventStatusRejected)}}},
	}
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id string, from, to domain.EventStatus, rejectionReason string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	filter := bson.D{{Key: "_id", Value: oid}, {Key: "status", Value: string(from)}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(to)},
		{Key: "rejection_reason", Value: rejectionReason},
		{Key: "updated_at", Value: r.now()},
	}}}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *eventRepository) RequestDeletion(ctx context.Context, id, reason string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "deletion_requested", Value: true},
		{Key: "deletion_reason", Value: reason},
		{Key: "updated_at", Value: r.now()},
	}}}
	return r.findOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update)
}

func (r *eventRepository) SetImageURL(ctx context.Context, id, imageURL string) (*domain.Event, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "image_url", Value: imageURL},
		{Key: "updated_at", Value: r.now()},
	}}}
	return r.findOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update)
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) AppendRegistration(ctx context.Context, eventID, subEventID string, reg domain.Registration) (*domain.Event, error) {
	oid, err := objectID(eventID)
	if err != nil {
		return nil, err
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: string(domain.EventStatusApproved)},
	}
	target := "registrations"
	if subEventID != "" {
		subOID, err := objectID(subEventID)
		if err != nil {
			return nil, err
		}
		filter = append(filter, bson.E{Key: "sub_events._id", Value: subOID})
		target = "sub_events.$.registrations"
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: target, Value: toRegistrationDocument(reg)}}},
		{Key: "$inc", Value: bson.D{{Key: "attendees", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: r.now()}}},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *eventRepository) CountByStatus(ctx context.Context) ([]domain.EventStatusCount, int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "attendees", Value: bson.D{{Key: "$sum", Value: "$attendees"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate events: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status    string `bson:"_id"`
		Count     int    `bson:"count"`
		Attendees int    `bson:"attendees"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("decode event counts: %w", err)
	}
	counts := make([]domain.EventStatusCount, 0, len(rows))
	attendees := 0
	for _, row := range rows {
		counts = append(counts, domain.EventStatusCount{Status: domain.EventStatus(row.Status), Count: row.Count})
		attendees += row.Attendees
	}
	return counts, attendees, nil
}
