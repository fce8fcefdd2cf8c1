// Package keys formats and parses the human-readable sequence keys (EP-01, STORY-003)
// carried by epics, stories, acceptance criteria, test cases and test sets.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"reqline/internal/domain"
)

// maxDigits bounds the numeric suffix Parse accepts. Longer suffixes are
// treated as free-form keys so they never drive the sequence.
const maxDigits = 9

// Spec describes the key shape of one entity type.
type Spec struct {
	Entity domain.EntityType
	Prefix string
	Width  int
}

var specs = map[domain.EntityType]Spec{
	domain.EntityEpic:                {Entity: domain.EntityEpic, Prefix: "EP", Width: 2},
	domain.EntityStory:               {Entity: domain.EntityStory, Prefix: "STORY", Width: 3},
	domain.EntityAcceptanceCriterion: {Entity: domain.EntityAcceptanceCriterion, Prefix: "AC", Width: 3},
	domain.EntityTestCase:            {Entity: domain.EntityTestCase, Prefix: "TC", Width: 3},
	domain.EntityTestSet:             {Entity: domain.EntityTestSet, Prefix: "SET", Width: 3},
}

// For returns the key spec of an entity type. Types without keys return false.
func For(t domain.EntityType) (Spec, bool) {
	s, ok := specs[t]
	return s, ok
}

// Keyed lists the entity types that carry keys.
func Keyed() []domain.EntityType {
	return []domain.EntityType{
		domain.EntityEpic, domain.EntityStory, domain.EntityAcceptanceCriterion,
		domain.EntityTestCase, domain.EntityTestSet,
	}
}

// Format renders n zero-padded to the spec width. Wider numbers are kept whole.
func (s Spec) Format(n int) string {
	return fmt.Sprintf("%s-%0*d", s.Prefix, s.Width, n)
}

// Pattern is the SQL LIKE pattern matching keys of this spec.
func (s Spec) Pattern() string {
	return s.Prefix + "-%"
}

// Seed is the first key handed out for the type.
func (s Spec) Seed() string {
	return s.Format(1)
}

// Parse extracts the numeric suffix of key. Suffixes longer than nine digits are rejected.
func (s Spec) Parse(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, s.Prefix+"-")
	if !ok || rest == "" || len(rest) > maxDigits {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Max returns the greatest numeric suffix among existing keys, or 0.
func (s Spec) Max(existing []string) int {
	highest := 0
	for _, k := range existing {
		if n, ok := s.Parse(k); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// Next computes the key following both the stored counter and the observed keys.
func (s Spec) Next(counter int, existing []string) (string, int) {
	n := s.Max(existing)
	if counter > n {
		n = counter
	}
	n++
	return s.Format(n), n
}

// Seed returns the first key of an entity type, or "" for types without keys.
func Seed(t domain.EntityType) string {
	s, ok := For(t)
	if !ok {
		return ""
	}
	return s.Seed()
}
