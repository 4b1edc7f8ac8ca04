package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"eventhub/internal/domain"
)

const ns = "eventhub.events"

func toD(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func sampleDocument() *eventDocument {
	date := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	return &eventDocument{
		ID:            primitive.NewObjectID(),
		Title:         "Hack Night",
		Description:   "Overnight hackathon",
		Date:          date,
		Location:      "Main Hall",
		Coordinators:  []coordinatorDocument{{Name: "Ana", Contact: "ana@example.com"}},
		Links:         []linkDocument{},
		Status:        string(domain.EventStatusApproved),
		Creator:       "user-c",
		Attendees:     2,
		Registrations: []registrationDocument{{ID: "r1", Name: "Bo", Email: "bo@example.com", RegisteredAt: date}},
		SubEvents: []subEventDocument{{
			ID:            primitive.NewObjectID(),
			Name:          "Code Golf",
			Fee:           "150.50",
			Coordinators:  []coordinatorDocument{},
			Registrations: []registrationDocument{{ID: "r2", Name: "Cy", Email: "cy@example.com", RegisteredAt: date}},
		}},
		CreatedAt: date,
		UpdatedAt: date,
	}
}

func TestEventRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("assigns ids to event and sub-events", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewEventRepository(mt.DB)

		e := &domain.Event{
			Title:     "Hack Night",
			Status:    domain.EventStatusPending,
			CreatorID: "user-c",
			SubEvents: []domain.SubEvent{{Name: "Code Golf", Fee: decimal.RequireFromString("99.99")}},
		}
		require.NoError(t, repo.Create(context.Background(), e))
		assert.Len(t, e.ID, 24)
		require.Len(t, e.SubEvents, 1)
		assert.Len(t, e.SubEvents[0].ID, 24)
		assert.True(t, decimal.RequireFromString("99.99").Equal(e.SubEvents[0].Fee))

		inserted := mt.GetStartedEvent().Command.Lookup("documents").Array().Index(0).Value().Document()
		assert.Equal(t, "pending", inserted.Lookup("status").StringValue())
		assert.Equal(t, "99.99", inserted.Lookup("sub_events").Array().Index(0).Value().Document().Lookup("fee").StringValue())
		_, err := inserted.Lookup("registrations").Array().Values()
		require.NoError(t, err, "registrations must be stored as an array")
	})
}

func TestEventRepository_GetByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		doc := sampleDocument()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toD(t, doc)))
		repo := NewEventRepository(mt.DB)

		e, err := repo.GetByID(context.Background(), doc.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, "Hack Night", e.Title)
		assert.Equal(t, domain.EventStatusApproved, e.Status)
		assert.Equal(t, "user-c", e.CreatorID)
		assert.Len(t, e.Registrations, 1)
		require.Len(t, e.SubEvents, 1)
		assert.True(t, decimal.RequireFromString("150.5").Equal(e.SubEvents[0].Fee))
		assert.Equal(t, 2, e.TotalRegistrations())
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewEventRepository(mt.DB)

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	mt.Run("malformed id is not found", func(mt *mtest.T) {
		repo := NewEventRepository(mt.DB)
		_, err := repo.GetByID(context.Background(), "not-an-object-id")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_List(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns page and total", func(mt *mtest.T) {
		doc := sampleDocument()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(7)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toD(t, doc)),
		)
		repo := NewEventRepository(mt.DB)

		events, total, err := repo.List(context.Background(), domain.EventFilter{
			Statuses: []domain.EventStatus{domain.EventStatusApproved},
		}, domain.PaginationParams{Page: 2, PageSize: 5})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
		require.Len(t, events, 1)
		assert.Equal(t, doc.ID.Hex(), events[0].ID)
	})
}

func TestBuildFilter(t *testing.T) {
	requested := true
	tests := []struct {
		name   string
		filter domain.EventFilter
		want   bson.D
	}{
		{
			name:   "empty",
			filter: domain.EventFilter{},
			want:   bson.D{},
		},
		{
			name:   "statuses only",
			filter: domain.EventFilter{Statuses: []domain.EventStatus{domain.EventStatusApproved}},
			want:   bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"approved"}}}}},
		},
		{
			name: "approved or own",
			filter: domain.EventFilter{
				Statuses:         []domain.EventStatus{domain.EventStatusApproved},
				IncludeCreatorID: "user-c",
			},
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"approved"}}}}},
				bson.D{{Key: "creator", Value: "user-c"}},
			}}},
		},
		{
			name:   "search is escaped",
			filter: domain.EventFilter{Search: "c++", DeletionRequested: &requested},
			want: bson.D{
				{Key: "title", Value: primitive.Regex{Pattern: `c\+\+`, Options: "i"}},
				{Key: "deletion_requested", Value: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFilter(tt.filter))
		})
	}
}

func TestEventRepository_AppendRegistration(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	reg := domain.Registration{ID: "r3", Name: "Di", Email: "di@example.com", RegisteredAt: time.Now().UTC()}

	mt.Run("main event push and increment in one command", func(mt *mtest.T) {
		doc := sampleDocument()
		doc.Attendees = 3
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toD(t, doc)}))
		repo := NewEventRepository(mt.DB)

		e, err := repo.AppendRegistration(context.Background(), doc.ID.Hex(), "", reg)
		require.NoError(t, err)
		assert.Equal(t, 3, e.Attendees)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "approved", cmd.Lookup("query", "status").StringValue())
		assert.Equal(t, "di@example.com", cmd.Lookup("update", "$push", "registrations", "email").StringValue())
		assert.Equal(t, int64(1), cmd.Lookup("update", "$inc", "attendees").AsInt64())
	})

	mt.Run("sub-event uses positional push", func(mt *mtest.T) {
		doc := sampleDocument()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toD(t, doc)}))
		repo := NewEventRepository(mt.DB)

		subID := doc.SubEvents[0].ID
		_, err := repo.AppendRegistration(context.Background(), doc.ID.Hex(), subID.Hex(), reg)
		require.NoError(t, err)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, subID, cmd.Lookup("query", "sub_events._id").ObjectID())
		assert.Equal(t, "Di", cmd.Lookup("update", "$push", "sub_events.$.registrations", "name").StringValue())
		assert.Equal(t, int64(1), cmd.Lookup("update", "$inc", "attendees").AsInt64())
	})

	mt.Run("guard mismatch is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewEventRepository(mt.DB)

		_, err := repo.AppendRegistration(context.Background(), primitive.NewObjectID().Hex(), "", reg)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_UpdateStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("guards on current status", func(mt *mtest.T) {
		doc := sampleDocument()
		doc.Status = string(domain.EventStatusRejected)
		doc.RejectionReason = "Venue unavailable"
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toD(t, doc)}))
		repo := NewEventRepository(mt.DB)

		e, err := repo.UpdateStatus(context.Background(), doc.ID.Hex(), domain.EventStatusPending, domain.EventStatusRejected, "Venue unavailable")
		require.NoError(t, err)
		assert.Equal(t, domain.EventStatusRejected, e.Status)
		assert.Equal(t, "Venue unavailable", e.RejectionReason)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "pending", cmd.Lookup("query", "status").StringValue())
		assert.Equal(t, "rejected", cmd.Lookup("update", "$set", "status").StringValue())
	})
}

func TestEventRepository_Update(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	title := "Hack Night II"
	completed := domain.EventStatusCompleted

	mt.Run("edit skips rejected events", func(mt *mtest.T) {
		doc := sampleDocument()
		doc.Title = title
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toD(t, doc)}))
		repo := NewEventRepository(mt.DB)

		e, err := repo.Update(context.Background(), doc.ID.Hex(), domain.EventPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, e.Title)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "rejected", cmd.Lookup("query", "status", "$ne").StringValue())
		assert.Equal(t, title, cmd.Lookup("update", "$set", "title").StringValue())
	})

	mt.Run("completion requires approved", func(mt *mtest.T) {
		doc := sampleDocument()
		doc.Status = string(domain.EventStatusCompleted)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toD(t, doc)}))
		repo := NewEventRepository(mt.DB)

		_, err := repo.Update(context.Background(), doc.ID.Hex(), domain.EventPatch{Status: &completed})
		require.NoError(t, err)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(t, "approved", cmd.Lookup("query", "status").StringValue())
	})

	mt.Run("guard mismatch is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		repo := NewEventRepository(mt.DB)

		_, err := repo.Update(context.Background(), primitive.NewObjectID().Hex(), domain.EventPatch{Title: &title})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, NewEventRepository(mt.DB).Delete(context.Background(), primitive.NewObjectID().Hex()))
	})

	mt.Run("nothing deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		err := NewEventRepository(mt.DB).Delete(context.Background(), primitive.NewObjectID().Hex())
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEventRepository_CountByStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sums attendees", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "approved"}, {Key: "count", Value: 3}, {Key: "attendees", Value: 40}},
			bson.D{{Key: "_id", Value: "pending"}, {Key: "count", Value: 2}, {Key: "attendees", Value: 0}},
		))
		counts, attendees, err := NewEventRepository(mt.DB).CountByStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 40, attendees)
		assert.Equal(t, []domain.EventStatusCount{
			{Status: domain.EventStatusApproved, Count: 3},
			{Status: domain.EventStatusPending, Count: 2},
		}, counts)
	})
}
