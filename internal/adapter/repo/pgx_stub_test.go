package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type recordedCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	execTag  pgconn.CommandTag
	execErr  error
	row      []any
	rowErr   error
	rows     [][]any
	queryErr error
	calls    []recordedCall
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	if s.rowErr != nil {
		return simpleRow{err: s.rowErr}
	}
	if s.row == nil {
		return simpleRow{err: pgx.ErrNoRows}
	}
	return simpleRow{values: s.row}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, recordedCall{query: query, args: args})
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{data: s.rows, idx: -1}, nil
}

type simpleRow struct {
	values []any
	err    error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// assign copies values into dest pointers by reflection.
func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return errors.New("scan: destination must be a non-nil pointer")
		}
		if v == nil {
			target.Elem().Set(reflect.Zero(target.Elem().Type()))
			continue
		}
		src := reflect.ValueOf(v)
		if !src.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("scan: column %d: cannot assign %T to %s", i, v, target.Elem().Type())
		}
		target.Elem().Set(src)
	}
	return nil
}

type stubRows struct {
	data   [][]any
	idx    int
	closed bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx+1 >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return assign(r.data[r.idx], dest)
}
