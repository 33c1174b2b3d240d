// docstore.go
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

// Package docstore keeps schema-less JSON documents in one GORM table per
// entity type, keyed by an auto-assigned integer ID.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/localnerve/itsm-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// ErrNotFound is returned when no document has the requested ID.
var ErrNotFound = errors.New("document not found")

// Document is a stored document and its ID.
type Document struct {
	ID     int64
	Fields map[string]interface{}
}

// Get returns the value stored under key.
func (d Document) Get(key string) (interface{}, bool) {
	v, ok := d.Fields[key]
	return v, ok
}

// Store hands out tables on a shared database handle.
type Store struct {
	db *gorm.DB
}

// New creates a Store on db. Tables must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Table returns the named document table.
func (s *Store) Table(name string) *Table {
	return &Table{db: s.db, name: name}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Table is a single document table.
type Table struct {
	db   *gorm.DB
	name string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) session(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Table(t.name)
}

// Insert stores fields as a new document and returns its ID.
func (t *Table) Insert(ctx context.Context, fields map[string]interface{}) (int64, error) {
	body, err := models.NewJSON(fields)
	if err != nil {
		return 0, fmt.Errorf("encode %s document: %w", t.name, err)
	}
	rec := models.Record{Body: body}
	if err := t.session(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("insert into %s: %w", t.name, err)
	}
	return rec.ID, nil
}

// Get returns the document with the given ID or ErrNotFound.
func (t *Table) Get(ctx context.Context, id int64) (Document, error) {
	var rec models.Record
	err := t.session(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s %d: %w", t.name, id, err)
	}
	return toDocument(t.name, rec)
}

// Update sets the given fields and deletes the remove keys of one document.
func (t *Table) Update(ctx context.Context, id int64, set map[string]interface{}, remove []string) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.Record
		err := tx.Table(t.name).Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load %s %d: %w", t.name, id, err)
		}
		doc, err := toDocument(t.name, rec)
		if err != nil {
			return err
		}
		for _, k := range remove {
			delete(doc.Fields, k)
		}
		for k, v := range set {
			doc.Fields[k] = v
		}
		body, err := models.NewJSON(doc.Fields)
		if err != nil {
			return fmt.Errorf("encode %s document: %w", t.name, err)
		}
		err = tx.Table(t.name).Where("id = ?", id).Updates(map[string]interface{}{
			"body":       body,
			"updated_at": time.Now().UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("update %s %d: %w", t.name, id, err)
		}
		return nil
	})
}

// Remove deletes one document. Removing a missing document is not an error.
func (t *Table) Remove(ctx context.Context, id int64) error {
	if err := t.session(ctx).Where("id = ?", id).Delete(&models.Record{}).Error; err != nil {
		return fmt.Errorf("remove %s %d: %w", t.name, id, err)
	}
	return nil
}

// All returns every document ordered by ID.
func (t *Table) All(ctx context.Context) ([]Document, error) {
	var recs []models.Record
	err := t.session(ctx).
		Clauses(hints.Comment("select", "docstore:"+t.name)).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.name, err)
	}
	docs := make([]Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := toDocument(t.name, rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Search returns the documents matching filter, ordered by ID.
// A nil filter matches everything.
func (t *Table) Search(ctx context.Context, filter Filter) ([]Document, error) {
	docs, err := t.All(ctx)
	if err != nil || filter == nil {
		return docs, err
	}
	matched := docs[:0]
	for _, doc := range docs {
		if filter.Match(doc.Fields) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// First returns the lowest-ID document matching filter.
func (t *Table) First(ctx context.Context, filter Filter) (Document, error) {
	docs, err := t.Search(ctx, filter)
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

// Count returns the number of documents in the table.
func (t *Table) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.session(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

func toDocument(table string, rec models.Record) (Document, error) {
	fields, err := rec.Body.Fields()
	if err != nil {
		return Document{}, fmt.Errorf("decode %s %d: %w", table, rec.ID, err)
	}
	return Document{ID: rec.ID, Fields: fields}, nil
}
