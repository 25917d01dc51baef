package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingQuerier captures statements in order and answers the state row read.
type recordingQuerier struct {
	statements []string
	args       [][]any

	value   []byte
	found   bool
	lockErr error
	readErr error
}

func (q *recordingQuerier) record(sql string, args []any) {
	q.statements = append(q.statements, strings.Join(strings.Fields(sql), " "))
	q.args = append(q.args, args)
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	if strings.Contains(sql, "pg_advisory_xact_lock") && q.lockErr != nil {
		return pgconn.CommandTag{}, q.lockErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *recordingQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	return nil, errors.New("not supported")
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	return stateRow{q: q}
}

type stateRow struct {
	q *recordingQuerier
}

func (r stateRow) Scan(dest ...any) error {
	if r.q.readErr != nil {
		return r.q.readErr
	}
	if !r.q.found {
		return pgx.ErrNoRows
	}
	*dest[0].(*[]byte) = r.q.value
	return nil
}

func TestUpdateValue_LocksReadsThenWrites(t *testing.T) {
	q := &recordingQuerier{value: []byte(`[1]`), found: true}

	var seen []byte
	err := updateValue(context.Background(), q, "proposals", func(current []byte) ([]byte, error) {
		seen = current
		return []byte(`[1,2]`), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %v", len(q.statements), q.statements)
	}
	if !strings.HasPrefix(q.statements[0], "SELECT pg_advisory_xact_lock(hashtext($1))") {
		t.Errorf("expected advisory lock first, got %q", q.statements[0])
	}
	if !strings.HasSuffix(q.statements[1], "FOR UPDATE") {
		t.Errorf("expected locked read second, got %q", q.statements[1])
	}
	if !strings.HasPrefix(q.statements[2], "INSERT INTO app_state") {
		t.Errorf("expected upsert last, got %q", q.statements[2])
	}
	for i, args := range q.args {
		if args[0] != "proposals" {
			t.Errorf("statement %d: expected key proposals, got %v", i, args[0])
		}
	}
	if string(seen) != `[1]` {
		t.Errorf("expected current value [1], got %q", seen)
	}
	if got := string(q.args[2][1].([]byte)); got != `[1,2]` {
		t.Errorf("expected written value [1,2], got %q", got)
	}
}

func TestUpdateValue_MissingRow(t *testing.T) {
	q := &recordingQuerier{}

	called := false
	err := updateValue(context.Background(), q, "presentation", func(current []byte) ([]byte, error) {
		called = true
		if current != nil {
			t.Errorf("expected nil current value, got %q", current)
		}
		return []byte("true"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected transform to run for a missing row")
	}
	if len(q.statements) != 3 {
		t.Errorf("expected the row to be inserted, got %v", q.statements)
	}
}

func TestUpdateValue_StopsOnFailure(t *testing.T) {
	transformErr := errors.New("index out of range")

	tests := []struct {
		name           string
		querier        *recordingQuerier
		fnErr          error
		wantStatements int
		wantErr        error
	}{
		{
			name:           "lock fails",
			querier:        &recordingQuerier{lockErr: errors.New("connection reset")},
			wantStatements: 1,
		},
		{
			name:           "read fails",
			querier:        &recordingQuerier{readErr: errors.New("connection reset")},
			wantStatements: 2,
		},
		{
			name:           "transform fails",
			querier:        &recordingQuerier{value: []byte(`[]`), found: true},
			fnErr:          transformErr,
			wantStatements: 2,
			wantErr:        transformErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := updateValue(context.Background(), tt.querier, "proposals", func([]byte) ([]byte, error) {
				return []byte(`[]`), tt.fnErr
			})
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(tt.querier.statements) != tt.wantStatements {
				t.Errorf("expected %d statements before stopping, got %v", tt.wantStatements, tt.querier.statements)
			}
		})
	}
}

func TestGetValue_PlainReadDoesNotLock(t *testing.T) {
	q := &recordingQuerier{value: []byte("true"), found: true}

	value, found, err := getValue(context.Background(), q, "presentation", false)
	if err != nil || !found || string(value) != "true" {
		t.Fatalf("expected stored value, got %q found=%v err=%v", value, found, err)
	}
	if strings.Contains(q.statements[0], "FOR UPDATE") {
		t.Errorf("expected no row lock on a plain read, got %q", q.statements[0])
	}
}
