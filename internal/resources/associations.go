package resources

import (
	"context"

	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

var associationSchema = search.Schema{
	"user_id":     search.Int,
	"customer_id": search.Int,
}

// CreateAssociation associates a user with a customer. A pair is associated
// at most once.
func (s *Service) CreateAssociation(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := validation.Dictionary(data,
		[]validation.Field{
			{Name: "user_id", Validate: existsValidator(ctx, s.users, "user")},
			{Name: "customer_id", Validate: existsValidator(ctx, s.customers, "customer")},
		},
		nil, nil, s.timestamp())
	if err != nil {
		return 0, s.rejected(ctx, entityAssociation, err)
	}
	ok, err := s.associated(ctx, fields["user_id"].(int64), fields["customer_id"].(int64))
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, s.rejected(ctx, entityAssociation,
			types.Validationf("association between customer and user exists already"))
	}
	return s.insert(ctx, s.rels, entityAssociation, fields)
}

// AssociationList is the collection of all customer/user associations.
type AssociationList struct {
	describe
	svc *Service
}

func newAssociationList(s *Service) *AssociationList {
	return &AssociationList{svc: s, describe: describe{
		template: AssociationListURL,
		title:    "List of customer/user associations",
		description: `The associations between users and customers. POST
` + "`{\"user_id\": 1, \"customer_id\": 2}`" + ` to associate a user with a customer.

The user and customer resources offer friendlier views of the same data
through their ` + "`customers`" + ` and ` + "`users`" + ` links.`,
		schema: associationSchema,
	}}
}

// Get lists the associations matching the request filter.
func (r *AssociationList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.rels.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return rawListOf(req.Linker, "associations", docs, AssociationURL, AssociationListURL.Expand()), nil
}

// Create adds an association.
func (r *AssociationList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateAssociation(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.association(ctx, req.Linker, id)
	return AssociationURL.Expand(id), res, err
}

// Association is a single customer/user association. Associations are
// never replaced.
type Association struct {
	describe
	svc *Service
}

func newAssociation(s *Service) *Association {
	return &Association{svc: s, describe: describe{
		template:    AssociationURL,
		title:       "Customer/user association",
		description: "The association of a user with a customer. Both are embedded.",
	}}
}

func (s *Service) association(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.rels, id, "Customer/user association '%d' not found!")
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, int64Field(doc.Fields, "user_id"))
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, int64Field(doc.Fields, "customer_id"))
	if err != nil {
		return nil, err
	}
	res := full(l, doc, AssociationURL)
	res["_embedded"] = hal.Object{
		"user":     EmbedUser(l, user),
		"customer": EmbedCustomer(l, customer),
	}
	res["_links"] = l.Links(map[string]string{
		"self":         AssociationURL.Expand(id),
		"contained_in": AssociationListURL.Expand(),
	})
	return res, nil
}

// Get returns the association.
func (r *Association) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("association_id")
	if err != nil {
		return nil, err
	}
	return r.svc.association(ctx, req.Linker, id)
}
