package repo

import (
	"context"
	"errors"
	"fmt"

	"reqline/internal/domain"
	"reqline/internal/keys"
)

// NextKey reserves the next key for an entity type. It must run inside the
// transaction that inserts the row so the counter and the insert commit together.
func (r Repo) NextKey(ctx context.Context, t domain.EntityType) (string, error) {
	if !r.InTx() {
		return "", errors.New("next key requires a transaction")
	}
	spec, ok := keys.For(t)
	if !ok {
		return "", fmt.Errorf("%s has no key", t)
	}
	if _, err := r.exec(ctx, `INSERT INTO key_sequences(entity_type,last_value) VALUES (?,0) ON CONFLICT(entity_type) DO NOTHING`, string(t)); err != nil {
		return "", fmt.Errorf("init key sequence: %w", err)
	}
	var counter int
	if err := r.queryRow(ctx, `SELECT last_value FROM key_sequences WHERE entity_type=?`+r.Dialect.ForUpdate(), string(t)).Scan(&counter); err != nil {
		return "", fmt.Errorf("read key sequence: %w", err)
	}
	existing, err := r.existingKeys(ctx, t, spec)
	if err != nil {
		return "", err
	}
	key, n := spec.Next(counter, existing)
	if _, err := r.exec(ctx, `UPDATE key_sequences SET last_value=? WHERE entity_type=?`, n, string(t)); err != nil {
		return "", fmt.Errorf("advance key sequence: %w", err)
	}
	return key, nil
}

// PeekKey returns the key NextKey would hand out without reserving it.
func (r Repo) PeekKey(ctx context.Context, t domain.EntityType) (string, error) {
	spec, ok := keys.For(t)
	if !ok {
		return "", fmt.Errorf("%s has no key", t)
	}
	var counter int
	err := r.queryRow(ctx, `SELECT COALESCE(MAX(last_value),0) FROM key_sequences WHERE entity_type=?`, string(t)).Scan(&counter)
	if err != nil {
		return "", err
	}
	existing, err := r.existingKeys(ctx, t, spec)
	if err != nil {
		return "", err
	}
	key, _ := spec.Next(counter, existing)
	return key, nil
}

func (r Repo) existingKeys(ctx context.Context, t domain.EntityType, spec keys.Spec) ([]string, error) {
	tbl, err := TableFor(t)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, fmt.Sprintf(`SELECT key FROM %s WHERE key LIKE ?`, tbl.Name), spec.Pattern())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}
