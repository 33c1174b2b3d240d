package resources

import (
	"context"
	"strings"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

// Comment types. A worknote is a comment for the service desk only.
const (
	CommentTypeComment  = "COMMENT"
	CommentTypeWorknote = "WORKNOTE"
)

const (
	commentTextMin = 2
	commentTextMax = 25000000
)

var commentSchema = search.Schema{
	"user_id":   search.Int,
	"ticket_id": search.Int,
	"type":      search.String,
}

// ValidCommentType normalizes a comment type to upper case.
func ValidCommentType(value interface{}) (interface{}, error) {
	kind, ok := value.(string)
	if !ok {
		return nil, types.Validationf("expected string type for comment type")
	}
	kind = strings.ToUpper(kind)
	if kind != CommentTypeComment && kind != CommentTypeWorknote {
		return nil, types.Validationf("unknown comment type '%s'", kind)
	}
	return kind, nil
}

// checkComment validates comment data. id is nil on create.
func (s *Service) checkComment(ctx context.Context, data map[string]interface{}, id *int64) (map[string]interface{}, *docstore.Document, error) {
	existing, err := loadExisting(ctx, s.comments, id, "comment '%d' not found!")
	if err != nil {
		return nil, nil, err
	}
	fields, err := validation.Dictionary(data,
		[]validation.Field{
			{Name: "user_id", Validate: existsValidator(ctx, s.users, "user")},
			{Name: "ticket_id", Validate: existsValidator(ctx, s.tickets, "ticket")},
			{Name: "text", Validate: validation.StringLength(commentTextMin, commentTextMax)},
			{Name: "type", Validate: ValidCommentType},
		},
		nil, fieldsOf(existing), s.timestamp())
	if err != nil {
		return nil, nil, err
	}

	userID, ticketID := fields["user_id"].(int64), fields["ticket_id"].(int64)
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	customerID := int64Field(ticket.Fields, "customer_id")
	ok, err := s.associated(ctx, userID, customerID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, types.Validationf("user '%d' is not associated with ticket customer '%d'", userID, customerID)
	}

	if existing != nil {
		switch {
		case int64Field(existing.Fields, "user_id") != userID:
			return nil, nil, types.Validationf("cannot change user ID in comment '%d'", existing.ID)
		case int64Field(existing.Fields, "ticket_id") != ticketID:
			return nil, nil, types.Validationf("cannot change ticket ID in comment '%d'", existing.ID)
		}
	}
	return fields, existing, nil
}

// CreateComment validates and stores a new comment or worknote.
func (s *Service) CreateComment(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, _, err := s.checkComment(ctx, data, nil)
	if err != nil {
		return 0, s.rejected(ctx, entityComment, err)
	}
	return s.insert(ctx, s.comments, entityComment, fields)
}

// ReplaceComment validates data and replaces the stored comment with it. The
// user and ticket of a comment never change.
func (s *Service) ReplaceComment(ctx context.Context, id int64, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, existing, err := s.checkComment(ctx, data, &id)
	if err != nil {
		return s.rejected(ctx, entityComment, err)
	}
	return s.replace(ctx, s.comments, entityComment, existing, fields)
}

// CommentList is the collection of all comments and worknotes.
type CommentList struct {
	describe
	svc *Service
}

func newCommentList(s *Service) *CommentList {
	return &CommentList{svc: s, describe: describe{
		template: CommentListURL,
		title:    "List of comments",
		description: `All comments and worknotes, as stored. Nothing is embedded.

The ticket resource shows the comments and worknotes of a ticket in a
friendlier form. POST here to add a comment (` + "`type`" + ` ` + "`COMMENT`" + `) or a
worknote (` + "`type`" + ` ` + "`WORKNOTE`" + `) to a ticket.`,
		schema: commentSchema,
	}}
}

// Get lists the comments matching the request filter.
func (r *CommentList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.comments.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return rawListOf(req.Linker, "comments", docs, CommentURL, CommentListURL.Expand()), nil
}

// Create adds a comment.
func (r *CommentList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateComment(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.comment(ctx, req.Linker, id)
	return CommentURL.Expand(id), res, err
}

// Comment is a single comment or worknote.
type Comment struct {
	describe
	svc *Service
}

func newComment(s *Service) *Comment {
	return &Comment{svc: s, describe: describe{
		template: CommentURL,
		title:    "Comment",
		description: `A comment or worknote on a ticket. Its user must be associated with
the ticket's customer. The ticket, the user and that customer are embedded.

The user and ticket of a comment cannot change.`,
	}}
}

func (s *Service) comment(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.comments, id, "Comment '%d' not found!")
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.Get(ctx, int64Field(doc.Fields, "ticket_id"))
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, int64Field(ticket.Fields, "customer_id"))
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, int64Field(doc.Fields, "user_id"))
	if err != nil {
		return nil, err
	}
	res := full(l, doc, CommentURL)
	res["_embedded"] = hal.Object{
		"ticket":   EmbedTicket(l, ticket),
		"user":     EmbedUser(l, user),
		"customer": EmbedCustomer(l, customer),
	}
	res["_links"] = l.Links(map[string]string{
		"self":         CommentURL.Expand(id),
		"contained_in": CommentListURL.Expand(),
	})
	return res, nil
}

// Get returns the comment.
func (r *Comment) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("comment_id")
	if err != nil {
		return nil, err
	}
	return r.svc.comment(ctx, req.Linker, id)
}

// Replace overwrites the comment.
func (r *Comment) Replace(ctx context.Context, req Request, data map[string]interface{}) (string, error) {
	id, err := req.ID("comment_id")
	if err != nil {
		return "", err
	}
	if err := r.svc.ReplaceComment(ctx, id, data); err != nil {
		return "", err
	}
	return CommentURL.Expand(id), nil
}
