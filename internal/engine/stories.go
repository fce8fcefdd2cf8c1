package engine

import (
	"context"
	"errors"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

// StoryCreate are parameters for creating a story. When ActorID is set the
// actor's name is snapshotted and Actor is ignored.
type StoryCreate struct {
	EpicID    string
	Key       string
	ActorID   string
	Actor     string
	Action    string
	Outcome   string
	Status    string
	CreatedBy string
}

// StoryUpdate changes the non-nil fields. An empty ActorID clears the reference.
type StoryUpdate struct {
	EpicID    *string
	Key       *string
	ActorID   *string
	Actor     *string
	Action    *string
	Outcome   *string
	Status    *string
	UpdatedBy string
}

func (u StoryUpdate) statusOnly() bool {
	return u.Status != nil && u.EpicID == nil && u.Key == nil && u.ActorID == nil &&
		u.Actor == nil && u.Action == nil && u.Outcome == nil
}

func (e Engine) ListStories(ctx context.Context, f repo.StoryFilter) ([]domain.Story, error) {
	return e.Repo.ListStories(ctx, f)
}

func (e Engine) ListStoriesByEpic(ctx context.Context, epicID string) ([]domain.Story, error) {
	return e.Repo.ListStories(ctx, repo.StoryFilter{EpicID: epicID})
}

func (e Engine) GetStory(ctx context.Context, id string) (domain.Story, error) {
	s, err := e.Repo.GetStory(ctx, id)
	return s, storeErr(domain.EntityStory, id, err)
}

func (e Engine) NextStoryKey(ctx context.Context) (string, error) {
	return e.Repo.PeekKey(ctx, domain.EntityStory)
}

func (e Engine) CreateStory(ctx context.Context, in StoryCreate) (domain.Story, error) {
	var v validator
	v.require("epic_id", in.EpicID)
	if err := v.err(); err != nil {
		return domain.Story{}, err
	}
	st, err := e.resolveStatus(domain.EntityStory, "status", in.Status)
	if err != nil {
		return domain.Story{}, err
	}
	s := domain.Story{
		ID:      newID(),
		EpicID:  in.EpicID,
		Key:     in.Key,
		Actor:   in.Actor,
		Action:  in.Action,
		Outcome: in.Outcome,
		Status:  st,
		Audit:   e.newAudit(in.CreatedBy),
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if err := e.requireRef(ctx, r, domain.EntityEpic, in.EpicID); err != nil {
			return err
		}
		if in.ActorID != "" {
			a, err := storyActor(ctx, r, in.EpicID, in.ActorID)
			if err != nil {
				return err
			}
			s.ActorID = &a.ID
			s.Actor = a.Name
		}
		if s.Key == "" {
			if s.Key, err = r.NextKey(ctx, domain.EntityStory); err != nil {
				return err
			}
		}
		return r.InsertStory(ctx, s)
	})
	if err != nil {
		return domain.Story{}, storeErr(domain.EntityStory, s.ID, err)
	}
	e.created(domain.EntityStory, 1)
	return e.GetStory(ctx, s.ID)
}

func (e Engine) UpdateStory(ctx context.Context, id string, in StoryUpdate) (domain.Story, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		s, err := r.GetStory(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityStory, id, s.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		moved := in.EpicID != nil && *in.EpicID != s.EpicID
		if moved {
			if err := e.requireRef(ctx, r, domain.EntityEpic, *in.EpicID); err != nil {
				return err
			}
			s.EpicID = *in.EpicID
		}
		if in.Key != nil && *in.Key != "" {
			s.Key = *in.Key
		}
		if in.Actor != nil {
			s.Actor = *in.Actor
		}
		if in.ActorID != nil {
			if *in.ActorID == "" {
				s.ActorID = nil
			} else {
				a, err := storyActor(ctx, r, s.EpicID, *in.ActorID)
				if err != nil {
					return err
				}
				s.ActorID = &a.ID
				s.Actor = a.Name
			}
		} else if moved && s.ActorID != nil {
			if _, err := storyActor(ctx, r, s.EpicID, *s.ActorID); err != nil {
				return err
			}
		}
		if in.Action != nil {
			s.Action = *in.Action
		}
		if in.Outcome != nil {
			s.Outcome = *in.Outcome
		}
		if in.Status != nil {
			if s.Status, err = e.resolveStatus(domain.EntityStory, "status", *in.Status); err != nil {
				return err
			}
		}
		e.touch(&s.Audit, in.UpdatedBy)
		return r.UpdateStory(ctx, s)
	})
	if err != nil {
		return domain.Story{}, storeErr(domain.EntityStory, id, err)
	}
	return e.GetStory(ctx, id)
}

// DeleteStory removes the story with its criteria, test cases and runs.
func (e Engine) DeleteStory(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityStory, id)
	return err
}

// storyActor loads the actor a story under epicID may reference: it must
// belong to the epic's project.
func storyActor(ctx context.Context, r repo.Repo, epicID, actorID string) (domain.Actor, error) {
	a, err := r.GetActor(ctx, actorID)
	if err != nil {
		return domain.Actor{}, actorRef(actorID, err)
	}
	ep, err := r.GetEpic(ctx, epicID)
	if err != nil {
		return domain.Actor{}, err
	}
	if ep.ProjectID == nil || *ep.ProjectID != a.ProjectID {
		return domain.Actor{}, invalid("actor_id", "actor does not belong to the epic's project")
	}
	return a, nil
}

func actorRef(id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ReferenceError{Entity: domain.EntityActor, ID: id}
	}
	return err
}
