package engine

import (
	"context"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

type EpicCreate struct {
	ProjectID   string
	Key         string
	Title       string
	Description string
	Status      string
	CreatedBy   string
}

// EpicUpdate changes the non-nil fields. An empty ProjectID unassigns the epic.
type EpicUpdate struct {
	ProjectID   *string
	Key         *string
	Title       *string
	Description *string
	Status      *string
	UpdatedBy   string
}

func (u EpicUpdate) statusOnly() bool {
	return u.Status != nil && u.ProjectID == nil && u.Key == nil && u.Title == nil && u.Description == nil
}

func (e Engine) ListEpics(ctx context.Context, f repo.EpicFilter) ([]domain.Epic, error) {
	return e.Repo.ListEpics(ctx, f)
}

func (e Engine) ListEpicsByProject(ctx context.Context, projectID string) ([]domain.Epic, error) {
	return e.Repo.ListEpics(ctx, repo.EpicFilter{ProjectID: projectID})
}

func (e Engine) GetEpic(ctx context.Context, id string) (domain.Epic, error) {
	ep, err := e.Repo.GetEpic(ctx, id)
	return ep, storeErr(domain.EntityEpic, id, err)
}

// NextEpicKey previews the key the next created epic receives.
func (e Engine) NextEpicKey(ctx context.Context) (string, error) {
	return e.Repo.PeekKey(ctx, domain.EntityEpic)
}

func (e Engine) CreateEpic(ctx context.Context, in EpicCreate) (domain.Epic, error) {
	var v validator
	v.require("title", in.Title)
	if err := v.err(); err != nil {
		return domain.Epic{}, err
	}
	st, err := e.resolveStatus(domain.EntityEpic, "status", in.Status)
	if err != nil {
		return domain.Epic{}, err
	}
	ep := domain.Epic{
		ID:          newID(),
		ProjectID:   optional(in.ProjectID),
		Key:         in.Key,
		Title:       in.Title,
		Description: in.Description,
		Status:      st,
		Audit:       e.newAudit(in.CreatedBy),
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if ep.ProjectID != nil {
			if err := e.requireRef(ctx, r, domain.EntityProject, *ep.ProjectID); err != nil {
				return err
			}
		}
		if ep.Key == "" {
			if ep.Key, err = r.NextKey(ctx, domain.EntityEpic); err != nil {
				return err
			}
		}
		return r.InsertEpic(ctx, ep)
	})
	if err != nil {
		return domain.Epic{}, storeErr(domain.EntityEpic, ep.ID, err)
	}
	e.created(domain.EntityEpic, 1)
	return e.GetEpic(ctx, ep.ID)
}

func (e Engine) UpdateEpic(ctx context.Context, id string, in EpicUpdate) (domain.Epic, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		ep, err := r.GetEpic(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityEpic, id, ep.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		if in.ProjectID != nil {
			ep.ProjectID = optional(*in.ProjectID)
			if ep.ProjectID != nil {
				if err := e.requireRef(ctx, r, domain.EntityProject, *ep.ProjectID); err != nil {
					return err
				}
			}
		}
		if in.Key != nil && *in.Key != "" {
			ep.Key = *in.Key
		}
		if in.Title != nil {
			if *in.Title == "" {
				return invalid("title", "is required")
			}
			ep.Title = *in.Title
		}
		if in.Description != nil {
			ep.Description = *in.Description
		}
		if in.Status != nil {
			if ep.Status, err = e.resolveStatus(domain.EntityEpic, "status", *in.Status); err != nil {
				return err
			}
		}
		e.touch(&ep.Audit, in.UpdatedBy)
		return r.UpdateEpic(ctx, ep)
	})
	if err != nil {
		return domain.Epic{}, storeErr(domain.EntityEpic, id, err)
	}
	return e.GetEpic(ctx, id)
}

// DeleteEpic removes the epic with its stories, criteria, test cases and runs.
func (e Engine) DeleteEpic(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityEpic, id)
	return err
}
