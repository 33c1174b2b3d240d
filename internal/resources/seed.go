package resources

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/types"
)

// ErrNotEmpty is returned when seeding a store that already holds data.
var ErrNotEmpty = errors.New("store is not empty")

// Fixture is a data set keyed by collection name. Documents may carry their
// id. Attachments carry their payload base64 encoded in attachment_data.
// JSON is valid YAML, so a JSON export loads as well.
type Fixture struct {
	Users        []map[string]interface{} `yaml:"users"`
	Customers    []map[string]interface{} `yaml:"customers"`
	Associations []map[string]interface{} `yaml:"associations"`
	Tickets      []map[string]interface{} `yaml:"tickets"`
	Comments     []map[string]interface{} `yaml:"comments"`
	Attachments  []map[string]interface{} `yaml:"attachments"`
}

// ParseFixture decodes a YAML or JSON fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Empty reports whether no entity has been stored yet.
func (s *Service) Empty(ctx context.Context) (bool, error) {
	for _, table := range s.tables() {
		n, err := table.Count(ctx)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) tables() []*docstore.Table {
	return []*docstore.Table{s.users, s.customers, s.rels, s.tickets, s.comments, s.attachments}
}

// Seed loads the fixture into an empty store without validating it, so that
// exported data loads as it was. Documents are inserted in id order and must
// receive the id they carry.
func (s *Service) Seed(ctx context.Context, f *Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty, err := s.Empty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return ErrNotEmpty
	}

	sets := []struct {
		table *docstore.Table
		docs  []map[string]interface{}
	}{
		{s.users, f.Users},
		{s.customers, f.Customers},
		{s.rels, f.Associations},
		{s.tickets, f.Tickets},
		{s.comments, f.Comments},
		{s.attachments, f.Attachments},
	}
	for _, set := range sets {
		if err := s.seedTable(ctx, set.table, set.docs); err != nil {
			return err
		}
	}
	s.log.InfoContext(ctx, "store seeded",
		"users", len(f.Users), "customers", len(f.Customers), "associations", len(f.Associations),
		"tickets", len(f.Tickets), "comments", len(f.Comments), "attachments", len(f.Attachments))
	return nil
}

// SeedIfEmpty seeds the store unless it holds data already.
func (s *Service) SeedIfEmpty(ctx context.Context, f *Fixture) (bool, error) {
	err := s.Seed(ctx, f)
	if errors.Is(err, ErrNotEmpty) {
		return false, nil
	}
	return err == nil, err
}

type seedDoc struct {
	id     int64
	fields map[string]interface{}
}

func (s *Service) seedTable(ctx context.Context, table *docstore.Table, raw []map[string]interface{}) error {
	docs := make([]seedDoc, 0, len(raw))
	for i, r := range raw {
		fields, ok := types.Normalize(r).(map[string]interface{})
		if !ok {
			return fmt.Errorf("seed %s: document %d is not a map", table.Name(), i)
		}
		var id int64
		if v, ok := fields["id"]; ok {
			n, err := types.ToID(v)
			if err != nil {
				return fmt.Errorf("seed %s: %w", table.Name(), err)
			}
			id = n
			delete(fields, "id")
		}
		docs = append(docs, seedDoc{id: id, fields: fields})
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].id < docs[j].id })

	for _, doc := range docs {
		encoded, hasPayload := doc.fields["attachment_data"].(string)
		delete(doc.fields, "attachment_data")

		id, err := table.Insert(ctx, doc.fields)
		if err != nil {
			return fmt.Errorf("seed %s: %w", table.Name(), err)
		}
		if doc.id != 0 && doc.id != id {
			return fmt.Errorf("seed %s: document %d stored as %d", table.Name(), doc.id, id)
		}
		if !hasPayload {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("seed %s %d: decode payload: %w", table.Name(), id, err)
		}
		filename, _ := doc.fields["filename"].(string)
		contentType, _ := doc.fields["content_type"].(string)
		key := blobstore.AttachmentKey(int64Field(doc.fields, "ticket_id"), id, filename)
		if err := s.blobs.Write(ctx, key, payload, contentType); err != nil {
			return fmt.Errorf("seed %s %d: %w", table.Name(), id, err)
		}
	}
	return nil
}
