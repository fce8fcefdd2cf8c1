package engine

import (
	"context"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

type ActorCreate struct {
	ProjectID   string
	Name        string
	Role        string
	Description string
	CreatedBy   string
}

type ActorUpdate struct {
	Name        *string
	Role        *string
	Description *string
	UpdatedBy   string
}

func (e Engine) ListActors(ctx context.Context, f repo.ActorFilter) ([]domain.Actor, error) {
	return e.Repo.ListActors(ctx, f)
}

func (e Engine) ListActorsByProject(ctx context.Context, projectID string) ([]domain.Actor, error) {
	return e.Repo.ListActors(ctx, repo.ActorFilter{ProjectID: projectID})
}

func (e Engine) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	a, err := e.Repo.GetActor(ctx, id)
	return a, storeErr(domain.EntityActor, id, err)
}

func (e Engine) CreateActor(ctx context.Context, in ActorCreate) (domain.Actor, error) {
	var v validator
	v.require("project_id", in.ProjectID)
	v.require("name", in.Name)
	if err := v.err(); err != nil {
		return domain.Actor{}, err
	}
	a := domain.Actor{
		ID:          newID(),
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Role:        in.Role,
		Description: in.Description,
		Audit:       e.newAudit(in.CreatedBy),
	}
	err := e.inTx(ctx, func(r repo.Repo) error {
		if err := e.requireRef(ctx, r, domain.EntityProject, in.ProjectID); err != nil {
			return err
		}
		return r.InsertActor(ctx, a)
	})
	if err != nil {
		return domain.Actor{}, storeErr(domain.EntityActor, a.ID, err)
	}
	e.created(domain.EntityActor, 1)
	return e.GetActor(ctx, a.ID)
}

// UpdateActor edits an actor and refreshes the name snapshot on its stories.
func (e Engine) UpdateActor(ctx context.Context, id string, in ActorUpdate) (domain.Actor, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		a, err := r.GetActor(ctx, id)
		if err != nil {
			return err
		}
		renamed := false
		if in.Name != nil {
			if *in.Name == "" {
				return invalid("name", "is required")
			}
			renamed = *in.Name != a.Name
			a.Name = *in.Name
		}
		if in.Role != nil {
			a.Role = *in.Role
		}
		if in.Description != nil {
			a.Description = *in.Description
		}
		e.touch(&a.Audit, in.UpdatedBy)
		if err := r.UpdateActor(ctx, a); err != nil {
			return err
		}
		if renamed {
			return r.RenameStoryActor(ctx, a.ID, a.Name)
		}
		return nil
	})
	if err != nil {
		return domain.Actor{}, storeErr(domain.EntityActor, id, err)
	}
	return e.GetActor(ctx, id)
}

// DeleteActor removes the actor. Stories keep their name snapshot but lose the reference.
func (e Engine) DeleteActor(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityActor, id)
	return err
}
