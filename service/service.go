// Package service implements create, list, update and delete for the
// record types, on top of a db.Store.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"school-server-go/db"
	"school-server-go/models"
)

var logger = loggo.GetLogger("school.service")

// Phase identifies the store round trip an error came from.
type Phase string

const (
	PhaseLookup Phase = "lookup"
	PhaseWrite  Phase = "write"
)

// StoreError is a failure reported by the record store.
type StoreError struct {
	Phase Phase
	Err   error
}

func (e *StoreError) Error() string { return e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// Service serves one record type described by a Schema.
type Service[T any, PT models.Entity[T]] struct {
	store  db.Store[T]
	schema Schema
}

// StaffService and StudentService are the two services the server runs.
type (
	StaffService   = Service[models.Staff, *models.Staff]
	StudentService = Service[models.Student, *models.Student]
)

// New creates a Service over store.
func New[T any, PT models.Entity[T]](store db.Store[T], schema Schema) *Service[T, PT] {
	return &Service[T, PT]{store: store, schema: schema}
}

// Schema returns the schema the service was created with.
func (s *Service[T, PT]) Schema() Schema {
	return s.schema
}

// Ping checks the underlying store.
func (s *Service[T, PT]) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Create validates in and inserts it, returning the stored record. Unique
// columns are checked before the write; the store's own constraint catches
// concurrent duplicates that slip past the check.
func (s *Service[T, PT]) Create(ctx context.Context, in *T) (*T, error) {
	columns := PT(in).Columns()
	if err := s.checkRequired(columns); err != nil {
		return nil, err
	}

	for _, u := range s.schema.Unique {
		v := columns[u.Column]
		if v == nil {
			continue
		}
		existing, err := s.store.FindBy(ctx, u.Column, v)
		if err != nil {
			return nil, &StoreError{Phase: PhaseLookup, Err: err}
		}
		if existing != nil {
			return nil, s.conflict(u)
		}
	}

	rec, err := fromColumns[T](columns)
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid record")
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, errors.AlreadyExists) {
			logger.Debugf("store rejected duplicate %s: %v", s.schema.Noun, err)
			if len(s.schema.Unique) > 0 {
				return nil, s.conflict(s.schema.Unique[0])
			}
			return nil, err
		}
		return nil, &StoreError{Phase: PhaseWrite, Err: err}
	}
	logger.Debugf("created %s %d", s.schema.Noun, PT(rec).PrimaryKey())
	return rec, nil
}

// List returns the records whose filter column ends with filter. An empty
// filter returns every record.
func (s *Service[T, PT]) List(ctx context.Context, filter string) ([]T, error) {
	pattern := ""
	if filter != "" {
		// Suffix match only, as the API has always behaved.
		pattern = "%" + filter
	}
	recs, err := s.store.List(ctx, s.schema.FilterColumn, pattern)
	if err != nil {
		return nil, &StoreError{Phase: PhaseLookup, Err: err}
	}
	return recs, nil
}

// Update overwrites the record with id with the writable columns of in.
// It reports false, with no error, when every column already holds the
// given value.
func (s *Service[T, PT]) Update(ctx context.Context, id string, in *T) (bool, error) {
	columns := PT(in).Columns()
	if err := s.checkRequired(columns); err != nil {
		return false, err
	}
	if s.schema.ValidateID != nil {
		if err := s.schema.ValidateID(id); err != nil {
			return false, err
		}
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return false, &StoreError{Phase: PhaseLookup, Err: err}
	}
	if current == nil {
		return false, errors.NewNotFound(nil, fmt.Sprintf("%s with id=%s not found.", s.schema.Entity, id))
	}

	if !changed(PT(current).Columns(), columns) {
		return false, nil
	}
	if err := s.store.Update(ctx, id, columns); err != nil {
		return false, &StoreError{Phase: PhaseWrite, Err: err}
	}
	logger.Debugf("updated %s %s", s.schema.Noun, id)
	return true, nil
}

// Delete removes the record with id.
func (s *Service[T, PT]) Delete(ctx context.Context, id string) error {
	missing := fmt.Sprintf("Cannot delete %s with id=%s. %s not found!", s.schema.Entity, id, s.schema.Entity)

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return &StoreError{Phase: PhaseLookup, Err: err}
	}
	if current == nil {
		return errors.NewNotFound(nil, missing)
	}

	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return &StoreError{Phase: PhaseWrite, Err: err}
	}
	if n != 1 {
		// Deleted by someone else since the lookup.
		return errors.NewBadRequest(nil, missing)
	}
	logger.Debugf("deleted %s %s", s.schema.Noun, id)
	return nil
}

func (s *Service[T, PT]) checkRequired(columns map[string]any) error {
	for _, col := range s.schema.Required {
		if isBlank(columns[col]) {
			return errors.NewNotValid(nil, "Fill in the "+humanize(col))
		}
	}
	return nil
}

func (s *Service[T, PT]) conflict(u Constraint) error {
	return errors.NewAlreadyExists(nil,
		fmt.Sprintf("%s with the given %s already exists.", s.schema.Entity, u.Label))
}

// changed reports whether any column in next differs from current.
func changed(current, next map[string]any) bool {
	for col, v := range next {
		if current[col] != v {
			return true
		}
	}
	return false
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

// fromColumns builds a fresh record holding only the writable columns, so
// identifiers and timestamps sent by a client never reach the store.
func fromColumns[T any](columns map[string]any) (*T, error) {
	raw, err := json.Marshal(columns)
	if err != nil {
		return nil, err
	}
	rec := new(T)
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
