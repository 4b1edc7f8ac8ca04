package mongodb

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"eventhub/internal/domain"
)

// eventDocument is the persisted shape of an event. Sub-events and registrations
// are embedded so a registration append and the attendee increment touch one document.
type eventDocument struct {
	ID                primitive.ObjectID     `bson:"_id,omitempty"`
	Title             string                 `bson:"title"`
	Description       string                 `bson:"description"`
	Date              time.Time              `bson:"date"`
	Location          string                 `bson:"location"`
	ImageURL          string                 `bson:"image_url"`
	Category          string                 `bson:"category"`
	Coordinators      []coordinatorDocument  `bson:"coordinators"`
	Links             []linkDocument         `bson:"links"`
	SubEvents         []subEventDocument     `bson:"sub_events"`
	Status            string                 `bson:"status"`
	Creator           string                 `bson:"creator"`
	Attendees         int                    `bson:"attendees"`
	RejectionReason   string                 `bson:"rejection_reason"`
	DeletionRequested bool                   `bson:"deletion_requested"`
	DeletionReason    string                 `bson:"deletion_reason"`
	Registrations     []registrationDocument `bson:"registrations"`
	CreatedAt         time.Time              `bson:"created_at"`
	UpdatedAt         time.Time              `bson:"updated_at"`
}

type subEventDocument struct {
	ID            primitive.ObjectID     `bson:"_id"`
	Name          string                 `bson:"name"`
	Date          time.Time              `bson:"date"`
	Venue         string                 `bson:"venue"`
	Description   string                 `bson:"description"`
	Rules         string                 `bson:"rules"`
	Coordinators  []coordinatorDocument  `bson:"coordinators"`
	Fee           string                 `bson:"fee"`
	Prize         string                 `bson:"prize"`
	Registrations []registrationDocument `bson:"registrations"`
}

type coordinatorDocument struct {
	Name    string `bson:"name"`
	Contact string `bson:"contact"`
}

type linkDocument struct {
	Title string `bson:"title"`
	URL   string `bson:"url"`
}

type registrationDocument struct {
	ID            string    `bson:"id"`
	Name          string    `bson:"name"`
	Email         string    `bson:"email"`
	Phone         string    `bson:"phone,omitempty"`
	InstituteName string    `bson:"institute_name,omitempty"`
	Degree        string    `bson:"degree,omitempty"`
	Branch        string    `bson:"branch,omitempty"`
	Year          int       `bson:"year,omitempty"`
	TransactionID string    `bson:"transaction_id,omitempty"`
	RegisteredAt  time.Time `bson:"registered_at"`
}

// newEventDocument converts a domain event for insertion, assigning ids to the
// event and its sub-events. Every array is non-nil so later $push updates succeed.
func newEventDocument(e *domain.Event) *eventDocument {
	doc := &eventDocument{
		ID:                primitive.NewObjectID(),
		Title:             e.Title,
		Description:       e.Description,
		Date:              e.Date,
		Location:          e.Location,
		ImageURL:          e.ImageURL,
		Category:          e.Category,
		Coordinators:      toCoordinatorDocuments(e.Coordinators),
		Links:             toLinkDocuments(e.Links),
		SubEvents:         make([]subEventDocument, 0, len(e.SubEvents)),
		Status:            string(e.Status),
		Creator:           e.CreatorID,
		Attendees:         e.Attendees,
		RejectionReason:   e.RejectionReason,
		DeletionRequested: e.DeletionRequested,
		DeletionReason:    e.DeletionReason,
		Registrations:     toRegistrationDocuments(e.Registrations),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	for _, se := range e.SubEvents {
		doc.SubEvents = append(doc.SubEvents, subEventDocument{
			ID:            primitive.NewObjectID(),
			Name:          se.Name,
			Date:          se.Date,
			Venue:         se.Venue,
			Description:   se.Description,
			Rules:         se.Rules,
			Coordinators:  toCoordinatorDocuments(se.Coordinators),
			Fee:           se.Fee.String(),
			Prize:         se.Prize,
			Registrations: toRegistrationDocuments(se.Registrations),
		})
	}
	return doc
}

func (d *eventDocument) toDomain() *domain.Event {
	e := &domain.Event{
		ID:                d.ID.Hex(),
		Title:             d.Title,
		Description:       d.Description,
		Date:              d.Date,
		Location:          d.Location,
		ImageURL:          d.ImageURL,
		Category:          d.Category,
		Coordinators:      fromCoordinatorDocuments(d.Coordinators),
		Links:             make([]domain.Link, 0, len(d.Links)),
		SubEvents:         make([]domain.SubEvent, 0, len(d.SubEvents)),
		Status:            domain.EventStatus(d.Status),
		CreatorID:         d.Creator,
		Attendees:         d.Attendees,
		RejectionReason:   d.RejectionReason,
		DeletionRequested: d.DeletionRequested,
		DeletionReason:    d.DeletionReason,
		Registrations:     fromRegistrationDocuments(d.Registrations),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, l := range d.Links {
		e.Links = append(e.Links, domain.Link{Title: l.Title, URL: l.URL})
	}
	for _, se := range d.SubEvents {
		fee, err := decimal.NewFromString(se.Fee)
		if err != nil {
			fee = decimal.Zero
		}
		e.SubEvents = append(e.SubEvents, domain.SubEvent{
			ID:            se.ID.Hex(),
			Name:          se.Name,
			Date:          se.Date,
			Venue:         se.Venue,
			Description:   se.Description,
			Rules:         se.Rules,
			Coordinators:  fromCoordinatorDocuments(se.Coordinators),
			Fee:           fee,
			Prize:         se.Prize,
			Registrations: fromRegistrationDocuments(se.Registrations),
		})
	}
	return e
}

func toCoordinatorDocuments(in []domain.Coordinator) []coordinatorDocument {
	out := make([]coordinatorDocument, 0, len(in))
	for _, c := range in {
		out = append(out, coordinatorDocument{Name: c.Name, Contact: c.Contact})
	}
	return out
}

func fromCoordinatorDocuments(in []coordinatorDocument) []domain.Coordinator {
	out := make([]domain.Coordinator, 0, len(in))
	for _, c := range in {
		out = append(out, domain.Coordinator{Name: c.Name, Contact: c.Contact})
	}
	return out
}

func toLinkDocuments(in []domain.Link) []linkDocument {
	out := make([]linkDocument, 0, len(in))
	for _, l := range in {
		out = append(out, linkDocument{Title: l.Title, URL: l.URL})
	}
	return out
}

func toRegistrationDocument(r domain.Registration) registrationDocument {
	return registrationDocument{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		InstituteName: r.InstituteName,
		Degree:        r.Degree,
		Branch:        r.Branch,
		Year:          r.Year,
		TransactionID: r.TransactionID,
		RegisteredAt:  r.RegisteredAt,
	}
}

func toRegistrationDocuments(in []domain.Registration) []registrationDocument {
	out := make([]registrationDocument, 0, len(in))
	for _, r := range in {
		out = append(out, toRegistrationDocument(r))
	}
	return out
}

func fromRegistrationDocuments(in []registrationDocument) []domain.Registration {
	out := make([]domain.Registration, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Registration{
			ID:            r.ID,
			Name:          r.Name,
			Email:         r.Email,
			Phone:         r.Phone,
			InstituteName: r.InstituteName,
			Degree:        r.Degree,
			Branch:        r.Branch,
			Year:          r.Year,
			TransactionID: r.TransactionID,
			RegisteredAt:  r.RegisteredAt,
		})
	}
	return out
}
