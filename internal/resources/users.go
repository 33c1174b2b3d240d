package resources

import (
	"context"
	"fmt"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

var userSchema = search.Schema{
	"email":           search.List,
	"custom_fields.*": search.Dict,
}

// emailValidator accepts a non-empty list of well formed addresses that no
// user other than self owns. self is nil on create.
func (s *Service) emailValidator(ctx context.Context, self *int64) validation.Validator {
	return func(value interface{}) (interface{}, error) {
		list, ok := value.([]interface{})
		if !ok {
			return nil, types.Validationf("email needs to be a list")
		}
		if len(list) == 0 {
			return nil, types.Validationf("at least one email address is required")
		}
		emails := make([]interface{}, 0, len(list))
		for _, item := range list {
			email, err := validation.Email(item)
			if err != nil {
				return nil, err
			}
			owners, err := s.users.Search(ctx, docstore.Where("email").Any(email))
			if err != nil {
				return nil, err
			}
			for _, owner := range owners {
				if self != nil && owner.ID == *self {
					continue
				}
				return nil, types.Validationf("user with email '%s' exists already", email)
			}
			emails = append(emails, email)
		}
		return emails, nil
	}
}

// checkUser validates user data. id is nil on create.
func (s *Service) checkUser(ctx context.Context, data map[string]interface{}, id *int64) (map[string]interface{}, *docstore.Document, error) {
	existing, err := loadExisting(ctx, s.users, id, "user '%d' not found!")
	if err != nil {
		return nil, nil, err
	}
	fields, err := validation.Dictionary(data,
		[]validation.Field{{Name: "email", Validate: s.emailValidator(ctx, id)}},
		[]validation.Field{{Name: "custom_fields", Validate: validation.Map}},
		fieldsOf(existing), s.timestamp())
	if err != nil {
		return nil, nil, err
	}
	return fields, existing, nil
}

// CreateUser validates and stores a new user.
func (s *Service) CreateUser(ctx context.Context, data map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, _, err := s.checkUser(ctx, data, nil)
	if err != nil {
		return 0, s.rejected(ctx, entityUser, err)
	}
	return s.insert(ctx, s.users, entityUser, fields)
}

// ReplaceUser validates data and replaces the stored user with it.
func (s *Service) ReplaceUser(ctx context.Context, id int64, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, existing, err := s.checkUser(ctx, data, &id)
	if err != nil {
		return s.rejected(ctx, entityUser, err)
	}
	return s.replace(ctx, s.users, entityUser, existing, fields)
}

// UserList is the collection of all users.
type UserList struct {
	describe
	svc *Service
}

func newUserList(s *Service) *UserList {
	return &UserList{svc: s, describe: describe{
		template: UserListURL,
		title:    "List of users",
		description: `All users, with the key fields of each user embedded.

Follow the ` + "`self`" + ` link of an embedded user for the full resource.
Filter with query parameters, for example ` + "`?email=some@user.com`" + ` or
` + "`?custom_fields.address.city=Littleville`" + `.`,
		schema: userSchema,
	}}
}

// Get lists the users matching the request filter.
func (r *UserList) Get(ctx context.Context, req Request) (hal.Object, error) {
	docs, err := r.svc.users.Search(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "users", embedAll(req.Linker, docs, EmbedUser),
		UserListURL.Expand(), RootURL.Expand()), nil
}

// Create adds a user.
func (r *UserList) Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error) {
	id, err := r.svc.CreateUser(ctx, data)
	if err != nil {
		return "", nil, err
	}
	res, err := r.svc.user(ctx, req.Linker, id)
	return UserURL.Expand(id), res, err
}

// User is a single user.
type User struct {
	describe
	svc *Service
}

func newUser(s *Service) *User {
	return &User{svc: s, describe: describe{
		template: UserURL,
		title:    "User",
		description: `A person working for one or more customers, who may contact the
service desk to raise tickets.

A user needs a list of one or more email addresses. No two users share an
address. Any other data lives under ` + "`custom_fields`" + `.

The ` + "`_links`" + ` section points to the customers of this user and to the
tickets this user raised.`,
	}}
}

func (s *Service) user(ctx context.Context, l hal.Linker, id int64) (hal.Object, error) {
	doc, err := load(ctx, s.users, id, "User '%d' not found!")
	if err != nil {
		return nil, err
	}
	res := full(l, doc, UserURL)
	res["_links"] = l.Links(map[string]string{
		"self":         UserURL.Expand(id),
		"contained_in": UserListURL.Expand(),
		"customers":    UserCustomerListURL.Expand(id),
		"tickets":      UserTicketListURL.Expand(id),
	})
	return res, nil
}

// Get returns the user.
func (r *User) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("user_id")
	if err != nil {
		return nil, err
	}
	return r.svc.user(ctx, req.Linker, id)
}

// Replace overwrites the user.
func (r *User) Replace(ctx context.Context, req Request, data map[string]interface{}) (string, error) {
	id, err := req.ID("user_id")
	if err != nil {
		return "", err
	}
	if err := r.svc.ReplaceUser(ctx, id, data); err != nil {
		return "", err
	}
	return UserURL.Expand(id), nil
}

// UserCustomerList is the collection of customers a user is associated with.
type UserCustomerList struct {
	describe
	svc *Service
}

func newUserCustomerList(s *Service) *UserCustomerList {
	return &UserCustomerList{svc: s, describe: describe{
		template: UserCustomerListURL,
		title:    "List of customers of a user",
		description: `The customers a user is associated with, with the key fields of
each customer embedded.

Associations are managed through ` + "`/customer_user_associations`" + `.`,
		schema: customerSchema,
	}}
}

// Get lists the user's customers matching the request filter.
func (r *UserCustomerList) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("user_id")
	if err != nil {
		return nil, err
	}
	if _, err := load(ctx, r.svc.users, id, "User '%d' not found!"); err != nil {
		return nil, err
	}
	docs, err := r.svc.related(ctx, "user_id", id, "customer_id", r.svc.customers, req.Filter)
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "customers", embedAll(req.Linker, docs, EmbedCustomer),
		UserCustomerListURL.Expand(id), UserURL.Expand(id)), nil
}

// UserTicketList is the collection of tickets raised by a user.
type UserTicketList struct {
	describe
	svc *Service
}

func newUserTicketList(s *Service) *UserTicketList {
	return &UserTicketList{svc: s, describe: describe{
		template:    UserTicketListURL,
		title:       "List of tickets of a user",
		description: "The tickets raised by a user, with the key fields of each ticket embedded.",
		schema:      ticketSchema,
	}}
}

// Get lists the user's tickets matching the request filter.
func (r *UserTicketList) Get(ctx context.Context, req Request) (hal.Object, error) {
	id, err := req.ID("user_id")
	if err != nil {
		return nil, err
	}
	if _, err := load(ctx, r.svc.users, id, "User '%d' not found!"); err != nil {
		return nil, err
	}
	docs, err := r.svc.tickets.Search(ctx, docstore.And(docstore.Where("user_id").Equals(id), req.Filter))
	if err != nil {
		return nil, err
	}
	return listOf(req.Linker, "tickets", embedAll(req.Linker, docs, EmbedTicket),
		UserTicketListURL.Expand(id), UserURL.Expand(id)), nil
}

// related returns the documents of target associated with the entity id
// through the association table. key names the entity's column in the
// association table, otherKey the target's.
func (s *Service) related(ctx context.Context, key string, id int64, otherKey string, target *docstore.Table, filter docstore.Filter) ([]docstore.Document, error) {
	rels, err := s.rels.Search(ctx, docstore.Where(key).Equals(id))
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]struct{}, len(rels))
	for _, rel := range rels {
		ids[int64Field(rel.Fields, otherKey)] = struct{}{}
	}
	docs, err := target.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", target.Name(), err)
	}
	res := docs[:0]
	for _, doc := range docs {
		if _, ok := ids[doc.ID]; ok {
			res = append(res, doc)
		}
	}
	return res, nil
}
