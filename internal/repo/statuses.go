package repo

import (
	"context"

	"reqline/internal/domain"
)

func (r Repo) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := r.query(ctx, `SELECT key,label,entity_type,COALESCE(color,''),is_deletable,is_archived,is_default,is_locked,rank FROM statuses ORDER BY rank, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Status
	for rows.Next() {
		var (
			s                                  domain.Status
			entity                             string
			deletable, archived, def, isLocked int
		)
		if err := rows.Scan(&s.Key, &s.Label, &entity, &s.Color, &deletable, &archived, &def, &isLocked, &s.Rank); err != nil {
			return nil, err
		}
		s.EntityType = domain.EntityType(entity)
		s.IsDeletable = deletable != 0
		s.IsArchived = archived != 0
		s.IsDefault = def != 0
		s.IsLocked = isLocked != 0
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertStatus inserts a registry row or replaces the row with the same key.
func (r Repo) UpsertStatus(ctx context.Context, s domain.Status) error {
	_, err := r.exec(ctx, `INSERT INTO statuses(key,label,entity_type,color,is_deletable,is_archived,is_default,is_locked,rank) VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(key) DO UPDATE SET label=excluded.label, entity_type=excluded.entity_type, color=excluded.color,
  is_deletable=excluded.is_deletable, is_archived=excluded.is_archived, is_default=excluded.is_default,
  is_locked=excluded.is_locked, rank=excluded.rank`,
		s.Key, s.Label, string(s.EntityType), nullable(s.Color), boolInt(s.IsDeletable), boolInt(s.IsArchived), boolInt(s.IsDefault), boolInt(s.IsLocked), s.Rank)
	return err
}
