package repo

import (
	"context"
	"fmt"
)

// The helpers below take table and column names from the static cascade
// table in the engine, never from request input.

// ChildIDs returns ids of rows in table whose fk column references any parent id.
func (r Repo) ChildIDs(ctx context.Context, table, fk string, parentIDs []string) ([]string, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE %s IN (%s)`, table, fk, placeholders(len(parentIDs))), anySlice(parentIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// StatusLabels maps id to its status label for the given rows.
func (r Repo) StatusLabels(ctx context.Context, table, statusColumn string, ids []string) (map[string]string, error) {
	res := make(map[string]string, len(ids))
	if len(ids) == 0 || statusColumn == "" {
		return res, nil
	}
	rows, err := r.query(ctx, fmt.Sprintf(`SELECT id,%s FROM %s WHERE id IN (%s)`, statusColumn, table, placeholders(len(ids))), anySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		res[id] = label
	}
	return res, rows.Err()
}

// DeleteIDs removes rows by id and returns how many went away.
func (r Repo) DeleteIDs(ctx context.Context, table string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, table, placeholders(len(ids))), anySlice(ids)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Detach nulls the fk column on rows referencing any parent id.
func (r Repo) Detach(ctx context.Context, table, fk string, parentIDs []string) (int64, error) {
	if len(parentIDs) == 0 {
		return 0, nil
	}
	res, err := r.exec(ctx, fmt.Sprintf(`UPDATE %s SET %s=NULL WHERE %s IN (%s)`, table, fk, fk, placeholders(len(parentIDs))), anySlice(parentIDs)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
