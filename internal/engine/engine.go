package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reqline/internal/db"
	"reqline/internal/domain"
	"reqline/internal/metrics"
	"reqline/internal/repo"
	"reqline/internal/status"
)

// DefaultUser is recorded in created_by/updated_by when the caller names nobody.
const DefaultUser = "system"

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Statuses status.Lookup
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, statuses status.Lookup) Engine {
	return Engine{
		DB:       conn,
		Repo:     repo.New(conn, dialect),
		Statuses: statuses,
		Log:      zerolog.Nop(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// inTx runs fn against a repo bound to one transaction. Nothing inside fn may
// use e.Repo directly: SQLite runs on a single connection.
func (e Engine) inTx(ctx context.Context, fn func(r repo.Repo) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(e.Repo.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func newID() string {
	return uuid.NewString()
}

func userOr(u string) string {
	if u = strings.TrimSpace(u); u != "" {
		return u
	}
	return DefaultUser
}

func (e Engine) newAudit(createdBy string) domain.Audit {
	now := e.timestamp()
	by := userOr(createdBy)
	return domain.Audit{CreatedAt: now, CreatedBy: by, UpdatedAt: now, UpdatedBy: by}
}

func (e Engine) touch(a *domain.Audit, updatedBy string) {
	a.UpdatedAt = e.timestamp()
	a.UpdatedBy = userOr(updatedBy)
}

// resolveStatus returns the stored label for value, or the type's default when value is empty.
func (e Engine) resolveStatus(t domain.EntityType, field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		def, err := e.Statuses.Default(t)
		if err != nil {
			return "", invalid(field, "no default status configured for "+t.Label())
		}
		return def.Label, nil
	}
	s, err := status.Resolve(e.Statuses, t, value)
	if err != nil {
		return "", invalid(field, "unknown status '"+value+"'")
	}
	return s.Label, nil
}

// checkEditable rejects edits to locked entities. A change that only moves
// the status to an unlocked one is allowed so a locked entity can be unlocked.
func (e Engine) checkEditable(t domain.EntityType, id, current string, statusOnly bool, target *string) error {
	if !status.Locked(e.Statuses, t, current) {
		return nil
	}
	if statusOnly && target != nil {
		field := "status"
		if t == domain.EntityTestCase {
			field = "test_status"
		}
		label, err := e.resolveStatus(t, field, *target)
		if err != nil {
			return err
		}
		if !status.Locked(e.Statuses, t, label) {
			return nil
		}
	}
	return LockedError{Entity: t, ID: id}
}

func (e Engine) requireRef(ctx context.Context, r repo.Repo, t domain.EntityType, id string) error {
	ok, err := r.Exists(ctx, t, id)
	if err != nil {
		return err
	}
	if !ok {
		return ReferenceError{Entity: t, ID: id}
	}
	return nil
}

func (e Engine) created(t domain.EntityType, n int) {
	e.Metrics.EntityCreated(string(t), n)
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
