// service.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package resources implements the ITSM entities: their validation rules,
// hypermedia representations and the resources that expose them.
package resources

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/metrics"
	"github.com/localnerve/itsm-api/internal/models"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/validation"
)

// TimestampFormat is the layout of _created and _updated. It is fixed width
// and always UTC, so timestamps order lexically.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// Entity names used in logs and metrics.
const (
	entityUser        = "user"
	entityCustomer    = "customer"
	entityAssociation = "association"
	entityTicket      = "ticket"
	entityComment     = "comment"
	entityAttachment  = "attachment"
)

// Service owns the entity tables and the attachment blob store.
// Creates and replaces are serialized by a single writer lock, so the
// uniqueness and reference checks cannot race with another write.
type Service struct {
	store       *docstore.Store
	users       *docstore.Table
	customers   *docstore.Table
	rels        *docstore.Table
	tickets     *docstore.Table
	comments    *docstore.Table
	attachments *docstore.Table
	blobs       blobstore.Store
	metrics     *metrics.Recorder
	log         *slog.Logger
	now         func() time.Time

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the domain metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service on a migrated store.
func NewService(store *docstore.Store, blobs blobstore.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		users:       store.Table(models.UsersTable),
		customers:   store.Table(models.CustomersTable),
		rels:        store.Table(models.UserCustomerRelsTable),
		tickets:     store.Table(models.TicketsTable),
		comments:    store.Table(models.CommentsTable),
		attachments: store.Table(models.AttachmentsTable),
		blobs:       blobs,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Ping checks the document store and the blob store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.blobs.Ping(ctx)
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(TimestampFormat)
}

// existsValidator returns a validator accepting an ID-like value that names
// an entity in table. It returns the ID as int64.
func existsValidator(ctx context.Context, table *docstore.Table, kind string) validation.Validator {
	return func(value interface{}) (interface{}, error) {
		id, err := types.ToID(value)
		if err != nil {
			return nil, err
		}
		if _, err := table.Get(ctx, id); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, types.Validationf("unknown %s '%d'", kind, id)
			}
			return nil, err
		}
		return id, nil
	}
}

// load returns the document or a not found error with the given message.
func load(ctx context.Context, table *docstore.Table, id int64, format string) (docstore.Document, error) {
	doc, err := table.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Document{}, types.NotFoundf(format, id)
	}
	return doc, err
}

// loadExisting loads the entity being replaced, or returns nil for a create.
func loadExisting(ctx context.Context, table *docstore.Table, id *int64, format string) (*docstore.Document, error) {
	if id == nil {
		return nil, nil
	}
	doc, err := load(ctx, table, *id, format)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func fieldsOf(doc *docstore.Document) map[string]interface{} {
	if doc == nil {
		return nil
	}
	return doc.Fields
}

// associated reports whether the user is associated with the customer.
func (s *Service) associated(ctx context.Context, userID, customerID int64) (bool, error) {
	docs, err := s.rels.Search(ctx, docstore.And(
		docstore.Where("customer_id").Equals(customerID),
		docstore.Where("user_id").Equals(userID),
	))
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// insert stores a validated entity.
func (s *Service) insert(ctx context.Context, table *docstore.Table, entity string, fields map[string]interface{}) (int64, error) {
	id, err := table.Insert(ctx, fields)
	if err != nil {
		return 0, err
	}
	s.metrics.Created(entity)
	s.log.InfoContext(ctx, "entity created", "entity", entity, "id", id)
	return id, nil
}

// replace overwrites an entity with fields, removing every stored key that
// fields does not carry.
func (s *Service) replace(ctx context.Context, table *docstore.Table, entity string, existing *docstore.Document, fields map[string]interface{}) error {
	var remove []string
	for k := range existing.Fields {
		if _, ok := fields[k]; !ok {
			remove = append(remove, k)
		}
	}
	if err := table.Update(ctx, existing.ID, fields, remove); err != nil {
		return err
	}
	s.metrics.Replaced(entity)
	s.log.InfoContext(ctx, "entity replaced", "entity", entity, "id", existing.ID, "removed", remove)
	return nil
}

// rejected records a failed create or replace and passes err through.
func (s *Service) rejected(ctx context.Context, entity string, err error) error {
	if types.IsValidation(err) {
		s.metrics.ValidationFailed(entity)
		s.log.DebugContext(ctx, "entity rejected", "entity", entity, "error", err)
	}
	return err
}

// int64Field returns an integer field of doc.
func int64Field(fields map[string]interface{}, key string) int64 {
	id, _ := types.ToID(fields[key])
	return id
}
