package engine

import (
	"context"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

// ProjectCreate are parameters for creating a project.
type ProjectCreate struct {
	Name        string
	Description string
	Status      string
	CreatedBy   string
}

// ProjectUpdate changes the non-nil fields of a project.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
	UpdatedBy   string
}

func (u ProjectUpdate) statusOnly() bool {
	return u.Status != nil && u.Name == nil && u.Description == nil
}

func (e Engine) ListProjects(ctx context.Context, f repo.ProjectFilter) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, f)
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	return p, storeErr(domain.EntityProject, id, err)
}

func (e Engine) CreateProject(ctx context.Context, in ProjectCreate) (domain.Project, error) {
	var v validator
	v.require("name", in.Name)
	if err := v.err(); err != nil {
		return domain.Project{}, err
	}
	st, err := e.resolveStatus(domain.EntityProject, "status", in.Status)
	if err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:          newID(),
		Name:        in.Name,
		Description: in.Description,
		Status:      st,
		Audit:       e.newAudit(in.CreatedBy),
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, storeErr(domain.EntityProject, p.ID, err)
	}
	e.created(domain.EntityProject, 1)
	return e.GetProject(ctx, p.ID)
}

func (e Engine) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (domain.Project, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityProject, id, p.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		if in.Name != nil {
			if *in.Name == "" {
				return invalid("name", "is required")
			}
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Status != nil {
			if p.Status, err = e.resolveStatus(domain.EntityProject, "status", *in.Status); err != nil {
				return err
			}
		}
		e.touch(&p.Audit, in.UpdatedBy)
		return r.UpdateProject(ctx, p)
	})
	if err != nil {
		return domain.Project{}, storeErr(domain.EntityProject, id, err)
	}
	return e.GetProject(ctx, id)
}

// DeleteProject removes the project and its actors. Its epics stay, unassigned.
func (e Engine) DeleteProject(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityProject, id)
	return err
}
