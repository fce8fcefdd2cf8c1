// Package status holds the registry of allowed statuses per entity type and their
// deletion, archival and lock semantics.
package status

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"reqline/internal/domain"
)

var ErrNotFound = errors.New("status not found")

//go:embed seed.yaml
var seedYAML []byte

// Lookup is the read-only view of the registry consumed by entity services.
type Lookup interface {
	// ByEntity returns statuses of the type plus Global rows, ordered by rank.
	ByEntity(t domain.EntityType) []domain.Status
	// Default returns the first default status for the type or Global.
	Default(t domain.EntityType) (domain.Status, error)
	ByKey(key string) (domain.Status, error)
}

// Registry is an in-memory Lookup.
type Registry struct {
	rows  []domain.Status
	byKey map[string]domain.Status
}

// NewRegistry builds a registry from rows. Later rows replace earlier ones with the same key.
func NewRegistry(rows ...domain.Status) *Registry {
	r := &Registry{byKey: make(map[string]domain.Status, len(rows))}
	for _, s := range rows {
		if _, dup := r.byKey[s.Key]; dup {
			for i := range r.rows {
				if r.rows[i].Key == s.Key {
					r.rows[i] = s
				}
			}
		} else {
			r.rows = append(r.rows, s)
		}
		r.byKey[s.Key] = s
	}
	sort.SliceStable(r.rows, func(i, j int) bool { return r.rows[i].Rank < r.rows[j].Rank })
	return r
}

func (r *Registry) ByEntity(t domain.EntityType) []domain.Status {
	var out []domain.Status
	for _, s := range r.rows {
		if s.EntityType == t || s.EntityType == domain.EntityGlobal {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Default(t domain.EntityType) (domain.Status, error) {
	for _, s := range r.ByEntity(t) {
		if s.IsDefault {
			return s, nil
		}
	}
	return domain.Status{}, fmt.Errorf("default for %s: %w", t, ErrNotFound)
}

func (r *Registry) ByKey(key string) (domain.Status, error) {
	s, ok := r.byKey[key]
	if !ok {
		return domain.Status{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return s, nil
}

// All returns every row ordered by rank.
func (r *Registry) All() []domain.Status {
	return append([]domain.Status(nil), r.rows...)
}

// Resolve finds the status of type t whose label or key equals value.
// Labels match exactly, keys case-insensitively.
func Resolve(l Lookup, t domain.EntityType, value string) (domain.Status, error) {
	for _, s := range l.ByEntity(t) {
		if s.Label == value || strings.EqualFold(s.Key, value) {
			return s, nil
		}
	}
	return domain.Status{}, fmt.Errorf("%s status %q: %w", t.Label(), value, ErrNotFound)
}

// Deletable reports whether an entity currently in label may be deleted.
// Labels unknown to the registry are not gated.
func Deletable(l Lookup, t domain.EntityType, label string) bool {
	s, err := Resolve(l, t, label)
	if err != nil {
		return true
	}
	return s.IsDeletable
}

// Locked reports whether an entity currently in label rejects edits.
func Locked(l Lookup, t domain.EntityType, label string) bool {
	s, err := Resolve(l, t, label)
	if err != nil {
		return false
	}
	return s.IsLocked
}

type seedDoc struct {
	Statuses []domain.Status `yaml:"statuses"`
}

// ParseSeed decodes a YAML status document.
func ParseSeed(data []byte) ([]domain.Status, error) {
	var doc seedDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse status seed: %w", err)
	}
	seen := map[string]bool{}
	for i, s := range doc.Statuses {
		if s.Key == "" || s.Label == "" {
			return nil, fmt.Errorf("status seed row %d: key and label are required", i)
		}
		et, ok := domain.ParseEntityType(string(s.EntityType))
		if !ok {
			return nil, fmt.Errorf("status %s: unknown entity_type %q", s.Key, s.EntityType)
		}
		doc.Statuses[i].EntityType = et
		if seen[s.Key] {
			return nil, fmt.Errorf("status %s: duplicate key", s.Key)
		}
		seen[s.Key] = true
	}
	return doc.Statuses, nil
}

// DefaultSeed returns the built-in status rows.
func DefaultSeed() []domain.Status {
	rows, err := ParseSeed(seedYAML)
	if err != nil {
		panic(err)
	}
	return rows
}

// LoadSeed reads a status document from path, or the built-in seed when path is empty.
func LoadSeed(path string) ([]domain.Status, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}
