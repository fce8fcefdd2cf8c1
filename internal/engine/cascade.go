package engine

import (
	"context"
	"errors"
	"sort"

	"reqline/internal/domain"
	"reqline/internal/repo"
	"reqline/internal/status"
)

type linkMode int

const (
	cascadeDelete linkMode = iota
	detachParent
)

// link is one parent-to-child edge of the ownership graph.
type link struct {
	Child domain.EntityType
	FK    string
	Mode  linkMode
}

var links = map[domain.EntityType][]link{
	domain.EntityProject: {
		{Child: domain.EntityEpic, FK: "project_id", Mode: detachParent},
		{Child: domain.EntityActor, FK: "project_id", Mode: cascadeDelete},
	},
	domain.EntityActor: {
		{Child: domain.EntityStory, FK: "actor_id", Mode: detachParent},
	},
	domain.EntityEpic: {
		{Child: domain.EntityStory, FK: "epic_id", Mode: cascadeDelete},
	},
	domain.EntityStory: {
		{Child: domain.EntityAcceptanceCriterion, FK: "story_id", Mode: cascadeDelete},
	},
	domain.EntityAcceptanceCriterion: {
		{Child: domain.EntityTestCase, FK: "acceptance_criterion_id", Mode: cascadeDelete},
	},
	domain.EntityTestCase: {
		{Child: domain.EntityTestRun, FK: "test_case_id", Mode: cascadeDelete},
	},
	domain.EntityTestSet: {
		{Child: domain.EntityTestRun, FK: "test_set_id", Mode: cascadeDelete},
	},
}

// CascadeReport counts the rows a delete removed or detached, root included.
type CascadeReport struct {
	Root     domain.EntityType           `json:"root"`
	RootID   string                      `json:"root_id"`
	Deleted  map[domain.EntityType]int64 `json:"deleted"`
	Detached map[domain.EntityType]int64 `json:"detached,omitempty"`
}

// Total is the number of deleted rows.
func (r CascadeReport) Total() int64 {
	var n int64
	for _, v := range r.Deleted {
		n += v
	}
	return n
}

// Delete removes an entity and everything it owns in one transaction. It fails
// without side effects when the entity or any owned descendant is in a
// non-deletable status.
func (e Engine) Delete(ctx context.Context, t domain.EntityType, id string) (CascadeReport, error) {
	report := CascadeReport{
		Root:     t,
		RootID:   id,
		Deleted:  map[domain.EntityType]int64{},
		Detached: map[domain.EntityType]int64{},
	}
	tbl, err := repo.TableFor(t)
	if err != nil {
		return report, err
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		ok, err := r.Exists(ctx, t, id)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundError{Entity: t, ID: id}
		}
		if err := e.checkDeletable(ctx, r, t, []string{id}); err != nil {
			return err
		}
		if err := e.cascade(ctx, r, t, []string{id}, &report); err != nil {
			return err
		}
		n, err := r.DeleteIDs(ctx, tbl.Name, []string{id})
		if err != nil {
			return err
		}
		report.Deleted[t] += n
		return nil
	})
	if err != nil {
		var nd StatusNotDeletableError
		if errors.As(err, &nd) {
			e.Log.Info().Str("entity", string(t)).Str("id", id).Str("blocked_by", string(nd.Entity)).Str("status", nd.Status).Msg("delete refused")
		}
		return report, storeErr(t, id, err)
	}
	e.observe(report)
	return report, nil
}

func (e Engine) checkDeletable(ctx context.Context, r repo.Repo, t domain.EntityType, ids []string) error {
	tbl, err := repo.TableFor(t)
	if err != nil {
		return err
	}
	labels, err := r.StatusLabels(ctx, tbl.Name, tbl.StatusColumn, ids)
	if err != nil {
		return err
	}
	blocked := make([]string, 0)
	for id, label := range labels {
		if !status.Deletable(e.Statuses, t, label) {
			blocked = append(blocked, id)
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	sort.Strings(blocked)
	return StatusNotDeletableError{Entity: t, ID: blocked[0], Status: labels[blocked[0]]}
}

// cascade walks the links of t depth first, deleting owned rows bottom-up and
// nulling references held by detached children.
func (e Engine) cascade(ctx context.Context, r repo.Repo, t domain.EntityType, ids []string, report *CascadeReport) error {
	for _, l := range links[t] {
		child, err := repo.TableFor(l.Child)
		if err != nil {
			return err
		}
		switch l.Mode {
		case detachParent:
			n, err := r.Detach(ctx, child.Name, l.FK, ids)
			if err != nil {
				return err
			}
			report.Detached[l.Child] += n
		case cascadeDelete:
			childIDs, err := r.ChildIDs(ctx, child.Name, l.FK, ids)
			if err != nil {
				return err
			}
			if len(childIDs) == 0 {
				continue
			}
			if err := e.checkDeletable(ctx, r, l.Child, childIDs); err != nil {
				return err
			}
			if err := e.cascade(ctx, r, l.Child, childIDs, report); err != nil {
				return err
			}
			n, err := r.DeleteIDs(ctx, child.Name, childIDs)
			if err != nil {
				return err
			}
			report.Deleted[l.Child] += n
		}
	}
	return nil
}

func (e Engine) observe(report CascadeReport) {
	evt := e.Log.Info().Str("entity", string(report.Root)).Str("id", report.RootID).Int64("rows", report.Total())
	for t, n := range report.Deleted {
		e.Metrics.ObserveCascade(string(report.Root), string(t), "deleted", n)
		if t != report.Root {
			evt = evt.Int64(string(t), n)
		}
	}
	for t, n := range report.Detached {
		e.Metrics.ObserveCascade(string(report.Root), string(t), "detached", n)
	}
	evt.Msg("cascade delete")
}
