package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"reqline/internal/db"
	"reqline/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUnique     = errors.New("unique constraint violated")
	ErrForeignKey = errors.New("foreign key constraint violated")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo runs queries against the pool, or against a transaction when bound with WithTx.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	tx      *sql.Tx
}

func New(conn *sql.DB, dialect db.Dialect) Repo {
	return Repo{DB: conn, Dialect: dialect}
}

// WithTx returns a copy of the repo whose queries run inside tx.
func (r Repo) WithTx(tx *sql.Tx) Repo {
	r.tx = tx
	return r
}

// InTx reports whether the repo is bound to a transaction.
func (r Repo) InTx() bool { return r.tx != nil }

func (r Repo) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.DB
}

func (r Repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.q().ExecContext(ctx, r.Dialect.Rebind(query), args...)
	return res, translate(err)
}

func (r Repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := r.q().QueryContext(ctx, r.Dialect.Rebind(query), args...)
	return rows, translate(err)
}

func (r Repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q().QueryRowContext(ctx, r.Dialect.Rebind(query), args...)
}

// translate classifies constraint failures from either driver.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUnique, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrForeignKey, pgErr.ConstraintName)
		}
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrUnique, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", ErrForeignKey, msg)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func checkAffected(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Table describes where an entity type is stored.
type Table struct {
	Name         string
	StatusColumn string
}

var tables = map[domain.EntityType]Table{
	domain.EntityProject:             {Name: "projects", StatusColumn: "status"},
	domain.EntityActor:               {Name: "actors"},
	domain.EntityEpic:                {Name: "epics", StatusColumn: "status"},
	domain.EntityStory:               {Name: "stories", StatusColumn: "status"},
	domain.EntityAcceptanceCriterion: {Name: "acceptance_criteria", StatusColumn: "status"},
	domain.EntityTestCase:            {Name: "test_cases", StatusColumn: "test_status"},
	domain.EntityTestSet:             {Name: "test_sets", StatusColumn: "status"},
	domain.EntityTestRun:             {Name: "test_runs", StatusColumn: "status"},
}

// TableFor returns the storage table of an entity type.
func TableFor(t domain.EntityType) (Table, error) {
	tbl, ok := tables[t]
	if !ok {
		return Table{}, fmt.Errorf("no table for entity type %s", t)
	}
	return tbl, nil
}

// Exists reports whether a row with id exists for the entity type.
func (r Repo) Exists(ctx context.Context, t domain.EntityType, id string) (bool, error) {
	tbl, err := TableFor(t)
	if err != nil {
		return false, err
	}
	var one int
	err = r.queryRow(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id=?`, tbl.Name), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of rows stored for the entity type.
func (r Repo) Count(ctx context.Context, t domain.EntityType) (int, error) {
	tbl, err := TableFor(t)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.queryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tbl.Name)).Scan(&n)
	return n, err
}
