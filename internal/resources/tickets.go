package resources

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

// Ticket status values.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

const (
	shortTitleMin = 2
	shortTitleMax = 300
	longTextMax   = 25000000
)

var ticketSchema = search.Schema{
	"aportio_id":       search.String,
	"customer_id":      search.Int,
	"user_id":          search.Int,
	"short_title":      search.String,
	"status":           search.String,
	"classification.*": search.Dict,
	"custom_fields.*":  search.Dict,
}

var classificationLevels = map[string]struct{}{"l1": {}, "l2": {}, "l3": {}}

// ValidStatus normalizes a ticket status to upper case.
func ValidStatus(value interface{}) (interface{}, error) {
	status, ok := value.(string)
	if !ok {
		return nil, types.Validationf("expected string type for status")
	}
	status = strings.ToUpper(status)
	if status != StatusOpen && status != StatusClosed {
		return nil, types.Validationf("invalid ticket status '%s'", status)
	}
	return status, nil
}

// ValidClassification accepts a map of l1, l2 and l3. A non-empty
// classification needs l1.
func ValidClassification(value interface{}) (interface{}, error) {
	classification, ok := value.(map[string]interface{})
	if !ok {
		return nil, types.Validationf("classification needs to be a dictionary")
	}
	var invalid []string
	for k := range classification {
		if _, ok := classificationLevels[k]; !ok {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, types.Validationf("invalid key(s) in classification: %s", strings.Join(invalid, ", "))
	}
	if _, ok := classification["l1"]; len(classification) > 0 && !ok {
		return nil, types.Validationf("L1 classification missing")
	}
	return classification, nil
}

// aportioIDValidator accepts an aportio ID no ticket other than self carries.
func (s *Service) aportioIDValidator(ctx context.Context, self *int64) validation.Validator {
	return func(value interface{}) (interface{}, error) {
		aportioID, ok := value.(string)
		if !ok {
			return nil, types.Validationf("expected string type for aportio ID")
		}
		doc, err := s.tickets.First(ctx, docstore.Where("aportio_id").Equals(aportioID))
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			return aportioID, nil
		case err != nil:
			return nil, err
		case self != nil && doc.ID == *self:
			return aportioID, nil
		}
		return nil, types.Validationf("a ticket with aportio ID '%s' exists already", aportioID)
	}
}

// checkTicket validates ticket data. id is nil on create.
func (s *Service) checkTicket(ctx context.Context, data map[string]interface{}, id *int64) (map[string]interface{}, *docstore.Document, error) {
	existing, err := loadExisting(ctx, s.tickets, id, "ticket '%d' not found!")
	if err != nil {
		return nil, nil, err
	}
	fields, err := validation.Dictionary(data,
		[]validation.Field{
			{Name: "aportio_id", Validate: s.aportioIDValidator(ctx, id)},
			{Name: "customer_id", Validate: existsValidator(ctx, s.customers, "customer")},
			{Name: "short_title", Validate: validation.StringLength(shortTitleMin, shortTitleMax)},
			{Name: "user_id", Validate: existsValidator(ctx, s.users, "user")},
			{Name: "status", Validate: ValidStatus},
			{Name: "classification", Validate: ValidClassification},
		},
		[]validation.Field{
			{Name: "long_text", Validate: validation.StringLength(0, longTextMax)},
			{Name: "custom_fields", Validate: validation.Map},
		},
		fieldsOf(existing), s.timestamp())
	if err != nil {
		return nil, nil, err
	}

	userID, customerID := fields["user_id"].(int64), fields["customer_id"].(int64)
	ok, err := s.associated(ctx, userID, customerID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, types.Validationf("user '%d' is not associated with customer '%d'", userID, customerID)
	}

	if existing != nil {
		switch {
		case int64Field(existing.Fields, "user_id") != userID:
			return nil, nil, types.Validationf("cannot change user ID in ticket '%d'", existing.ID)
		case int64Field(existing.Fields, "customer_id") != customerID:
			return nil, nil, types.Validationf("cannot change customer ID in ticket '%d'", existing.ID)
		case existing.Fields["aportio_id"] != fields["aportio_id"]:
			return nil, nil, types.Validationf("cannot change aportio ID in ticket '%d'", existing.ID)
		}
	}
	return fields, existing, nil
}

// CreateTicket validates and stores a new ticket.
func (s *Service) CreateTicket(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, _, err := s.checkTicket(ctx, data, nil)
	if err != nil {
		return 0, s.rejected(ctx, entityTicket, err)
	}
	return s.insert(ctx, s.tickets, entityTicket, fields)
}

// ReplaceTicket validates data and replaces the stored ticket with it. The
// user, customer and aportio ID of a ticket never change.
func (s *Service) ReplaceTicket(ctx context.Context, id int64, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, existing, err := s.checkTicket(ctx, data, &id)
	if err != nil {
		return s.rejected(ctx, entityTicket, err)
	}
	return s.replace(ctx, s.tickets, entityTicket, existing, fields)
}

// TicketList is the collection of all tickets.
type TicketList struct {
	describe
	svc *Service
}

func newTicketList(s *Service) *TicketList {
	return &TicketList{svc: s, describe: describe{
		template: TicketListURL,
		title:    "List of tickets",
		description: `All tickets, with the key fields of each ticket embedded.

Follow the ` + "`self`" + ` link of an embedded ticket for the full resource with
its comments, worknotes and attachments. Filter with query parameters, for
example ` + "`?customer_id=2&status=OPEN`" + ` or ` + "`?classification.l1=incident`" + `.
Repeating a parameter matches any of its values.`,
		schema: ticketSchema,
	}}
}

// Get lists the tickets matching the request filter.
func (r *TicketList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.tickets.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "tickets", embedAll(req.Linker, docs, EmbedTicket),
		TicketListURL.Expand(), RootURL.Expand()), nil
}

// Create adds a ticket.
func (r *TicketList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateTicket(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.ticket(ctx, req.Linker, id)
	return TicketURL.Expand(id), res, err
}

// Ticket is a single ticket.
type Ticket struct {
	describe
	svc *Service
}

func newTicket(s *Service) *Ticket {
	return &Ticket{svc: s, describe: describe{
		template: TicketURL,
		title:    "Ticket",
		description: `A ticket raised by a user on behalf of a customer. The user must be
associated with the customer.

Mandatory fields are ` + "`aportio_id`" + `, ` + "`customer_id`" + `, ` + "`user_id`" + `,
` + "`short_title`" + `, ` + "`status`" + ` (` + "`OPEN`" + ` or ` + "`CLOSED`" + `) and ` + "`classification`" + `
(` + "`l1`" + ` with optional ` + "`l2`" + ` and ` + "`l3`" + `). The user, customer and aportio ID
cannot change once the ticket exists.

Comments, worknotes and attachments of the ticket are embedded.`,
	}}
}

func (s *Service) ticket(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.tickets, id, "Ticket '%d' not found!")
	if err != nil {
		return nil, err
	}
	notes, err := s.comments.Search(ctx, docstore.Where("ticket_id").Equals(id))
	if err != nil {
		return nil, err
	}
	var comments, worknotes []docstore.Document
	for _, note := range notes {
		switch note.Fields["type"] {
		case CommentTypeComment:
			comments = append(comments, note)
		case CommentTypeWorknote:
			worknotes = append(worknotes, note)
		}
	}
	attachments, err := s.attachments.Search(ctx, docstore.Where("ticket_id").Equals(id))
	if err != nil {
		return nil, err
	}

	res := full(l, doc, TicketURL)
	res["_embedded"] = hal.Object{
		"comments":    embedAll(l, comments, EmbedComment),
		"worknotes":   embedAll(l, worknotes, EmbedComment),
		"attachments": embedAll(l, attachments, EmbedAttachment),
	}
	res["_links"] = l.Links(map[string]string{
		"self":         TicketURL.Expand(id),
		"contained_in": TicketListURL.Expand(),
		"customer":     CustomerURL.Expand(doc.Fields["customer_id"]),
		"user":         UserURL.Expand(doc.Fields["user_id"]),
	})
	return res, nil
}

// Get returns the ticket.
func (r *Ticket) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("ticket_id")
	if err != nil {
		return nil, err
	}
	return r.svc.ticket(ctx, req.Linker, id)
}

// Replace overwrites the ticket.
func (r *Ticket) Replace(ctx context.Context, req Request, data map[string]interface{}) (string, error) {
	id, err := req.ID("ticket_id")
	if err != nil {
		return "", err
	}
	if err := r.svc.ReplaceTicket(ctx, id, data); err != nil {
		return "", err
	}
	return TicketURL.Expand(id), nil
}
