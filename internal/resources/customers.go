package resources

import (
	"context"
	"errors"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

var customerSchema = search.Schema{
	"name":            search.String,
	"parent_id":       search.Int,
	"custom_fields.*": search.Dict,
}

// checkCustomer validates customer data. id is nil on create.
func (s *Service) checkCustomer(ctx context.Context, data map[string]interface{}, id *int64) (map[string]interface{}, *docstore.Document, error) {
	existing, err := loadExisting(ctx, s.customers, id, "customer '%d' not found!")
	if err != nil {
		return nil, nil, err
	}
	fields, err := validation.Dictionary(data,
		[]validation.Field{{Name: "name", Validate: validation.StringLength(1, 300)}},
		[]validation.Field{
			{Name: "parent_id", Validate: existsValidator(ctx, s.customers, "customer")},
			{Name: "custom_fields", Validate: validation.Map},
		},
		fieldsOf(existing), s.timestamp())
	if err != nil {
		return nil, nil, err
	}
	if id != nil {
		if err := s.checkAncestry(ctx, *id, fields); err != nil {
			return nil, nil, err
		}
	}
	return fields, existing, nil
}

// checkAncestry rejects a parent chain leading back to the customer id.
// A new customer has no children, so only replacements can close a cycle.
func (s *Service) checkAncestry(ctx context.Context, id int64, fields map[string]interface{}) error {
	parent, ok := fields["parent_id"].(int64)
	if !ok {
		return nil
	}
	if parent == id {
		return types.Validationf("customer '%d' cannot be its own parent", id)
	}
	seen := map[int64]struct{}{}
	for cur := parent; cur != 0; {
		if cur == id {
			return types.Validationf("customer '%d' cannot be its own ancestor", id)
		}
		if _, ok := seen[cur]; ok {
			return nil
		}
		seen[cur] = struct{}{}
		doc, err := s.customers.Get(ctx, cur)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cur = int64Field(doc.Fields, "parent_id")
	}
	return nil
}

// CreateCustomer validates and stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, _, err := s.checkCustomer(ctx, data, nil)
	if err != nil {
		return 0, s.rejected(ctx, entityCustomer, err)
	}
	return s.insert(ctx, s.customers, entityCustomer, fields)
}

// ReplaceCustomer validates data and replaces the stored customer with it.
func (s *Service) ReplaceCustomer(ctx context.Context, id int64, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, existing, err := s.checkCustomer(ctx, data, &id)
	if err != nil {
		return s.rejected(ctx, entityCustomer, err)
	}
	return s.replace(ctx, s.customers, entityCustomer, existing, fields)
}

// CustomerList is the collection of all customers.
type CustomerList struct {
	describe
	svc *Service
}

func newCustomerList(s *Service) *CustomerList {
	return &CustomerList{svc: s, describe: describe{
		template: CustomerListURL,
		title:    "List of customers",
		description: `All customers, with the key fields of each customer embedded.

Follow the ` + "`self`" + ` link of an embedded customer for the full resource.
Filter with query parameters, for example ` + "`?name=Foo%20Company`" + ` or
` + "`?parent_id=3`" + `.`,
		schema: customerSchema,
	}}
}

// Get lists the customers matching the request filter.
func (r *CustomerList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.customers.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "customers", embedAll(req.Linker, docs, EmbedCustomer),
		CustomerListURL.Expand(), RootURL.Expand()), nil
}

// Create adds a customer.
func (r *CustomerList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateCustomer(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.customer(ctx, req.Linker, id)
	return CustomerURL.Expand(id), res, err
}

// Customer is a single customer.
type Customer struct {
	describe
	svc *Service
}

func newCustomer(s *Service) *Customer {
	return &Customer{svc: s, describe: describe{
		template: CustomerURL,
		title:    "Customer",
		description: `A commercial client of the service provider. Its users contact the
service desk to raise tickets.

A customer needs a name. It may name a parent customer with ` + "`parent_id`" + `;
the parent chain never loops. Any other data lives under ` + "`custom_fields`" + `.`,
	}}
}

func (s *Service) customer(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.customers, id, "Customer '%d' not found!")
	if err != nil {
		return nil, err
	}
	res := full(l, doc, CustomerURL)
	links := map[string]string{
		"self":         CustomerURL.Expand(id),
		"contained_in": CustomerListURL.Expand(),
		"users":        CustomerUserListURL.Expand(id),
		"tickets":      CustomerTicketListURL.Expand(id),
	}
	if parent, ok := doc.Fields["parent_id"]; ok && parent != nil {
		links["parent"] = CustomerURL.Expand(parent)
	}
	res["_links"] = l.Links(links)
	return res, nil
}

// Get returns the customer.
func (r *Customer) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("customer_id")
	if err != nil {
		return nil, err
	}
	return r.svc.customer(ctx, req.Linker, id)
}

// Replace overwrites the customer.
func (r *Customer) Replace(ctx context.Context, req Request, data map[string]interface{}) (string, error) {
	id, err := req.ID("customer_id")
	if err != nil {
		return "", err
	}
	if err := r.svc.ReplaceCustomer(ctx, id, data); err != nil {
		return "", err
	}
	return CustomerURL.Expand(id), nil
}

// CustomerUserList is the collection of users associated with a customer.
type CustomerUserList struct {
	describe
	svc *Service
}

func newCustomerUserList(s *Service) *CustomerUserList {
	return &CustomerUserList{svc: s, describe: describe{
		template: CustomerUserListURL,
		title:    "List of users of a customer",
		description: `The users associated with a customer, with the key fields of each
user embedded.

Associations are managed through ` + "`/customer_user_associations`" + `.`,
		schema: userSchema,
	}}
}

// Get lists the customer's users matching the request filter.
func (r *CustomerUserList) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("customer_id")
	if err != nil {
		return nil, err
	}
	if _, err := load(ctx, r.svc.customers, id, "Customer '%d' not found!"); err != nil {
		return nil, err
	}
	docs, err := r.svc.related(ctx, "customer_id", id, "user_id", r.svc.users, req.Filter)
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "users", embedAll(req.Linker, docs, EmbedUser),
		CustomerUserListURL.Expand(id), CustomerURL.Expand(id)), nil
}

// CustomerTicketList is the collection of tickets of a customer.
type CustomerTicketList struct {
	describe
	svc *Service
}

func newCustomerTicketList(s *Service) *CustomerTicketList {
	return &CustomerTicketList{svc: s, describe: describe{
		template:    CustomerTicketListURL,
		title:       "List of tickets of a customer",
		description: "The tickets raised for a customer, with the key fields of each ticket embedded.",
		schema:      ticketSchema,
	}}
}

// Get lists the customer's tickets matching the request filter.
func (r *CustomerTicketList) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("customer_id")
	if err != nil {
		return nil, err
	}
	if _, err := load(ctx, r.svc.customers, id, "Customer '%d' not found!"); err != nil {
		return nil, err
	}
	docs, err := r.svc.tickets.Search(ctx, docstore.And(docstore.Where("customer_id").Equals(id), req.Filter))
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "tickets", embedAll(req.Linker, docs, EmbedTicket),
		CustomerTicketListURL.Expand(id), CustomerURL.Expand(id)), nil
}
