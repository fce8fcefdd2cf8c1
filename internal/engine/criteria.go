package engine

import (
	"context"

	"reqline/internal/domain"
	"reqline/internal/repo"
)

type AcceptanceCriterionCreate struct {
	StoryID   string
	Key       string
	Given     string
	When      string
	Then      string
	Status    string
	Valid     bool
	Risk      string
	Comments  string
	CreatedBy string
}

type AcceptanceCriterionUpdate struct {
	StoryID   *string
	Key       *string
	Given     *string
	When      *string
	Then      *string
	Status    *string
	Valid     *bool
	Risk      *string
	Comments  *string
	UpdatedBy string
}

func (u AcceptanceCriterionUpdate) statusOnly() bool {
	return u.Status != nil && u.StoryID == nil && u.Key == nil && u.Given == nil && u.When == nil &&
		u.Then == nil && u.Valid == nil && u.Risk == nil && u.Comments == nil
}

func (e Engine) ListAcceptanceCriteria(ctx context.Context, f repo.AcceptanceCriterionFilter) ([]domain.AcceptanceCriterion, error) {
	return e.Repo.ListAcceptanceCriteria(ctx, f)
}

func (e Engine) ListAcceptanceCriteriaByStory(ctx context.Context, storyID string) ([]domain.AcceptanceCriterion, error) {
	return e.Repo.ListAcceptanceCriteria(ctx, repo.AcceptanceCriterionFilter{StoryID: storyID})
}

func (e Engine) GetAcceptanceCriterion(ctx context.Context, id string) (domain.AcceptanceCriterion, error) {
	ac, err := e.Repo.GetAcceptanceCriterion(ctx, id)
	return ac, storeErr(domain.EntityAcceptanceCriterion, id, err)
}

func (e Engine) NextAcceptanceCriterionKey(ctx context.Context) (string, error) {
	return e.Repo.PeekKey(ctx, domain.EntityAcceptanceCriterion)
}

func (e Engine) CreateAcceptanceCriterion(ctx context.Context, in AcceptanceCriterionCreate) (domain.AcceptanceCriterion, error) {
	if in.Risk == "" {
		in.Risk = domain.LevelLow
	}
	var v validator
	v.require("story_id", in.StoryID)
	v.level("risk", in.Risk)
	if err := v.err(); err != nil {
		return domain.AcceptanceCriterion{}, err
	}
	st, err := e.resolveStatus(domain.EntityAcceptanceCriterion, "status", in.Status)
	if err != nil {
		return domain.AcceptanceCriterion{}, err
	}
	ac := domain.AcceptanceCriterion{
		ID:       newID(),
		StoryID:  in.StoryID,
		Key:      in.Key,
		Given:    in.Given,
		When:     in.When,
		Then:     in.Then,
		Status:   st,
		Valid:    in.Valid,
		Risk:     in.Risk,
		Comments: in.Comments,
		Audit:    e.newAudit(in.CreatedBy),
	}
	err = e.inTx(ctx, func(r repo.Repo) error {
		if err := e.requireRef(ctx, r, domain.EntityStory, in.StoryID); err != nil {
			return err
		}
		if ac.Key == "" {
			if ac.Key, err = r.NextKey(ctx, domain.EntityAcceptanceCriterion); err != nil {
				return err
			}
		}
		return r.InsertAcceptanceCriterion(ctx, ac)
	})
	if err != nil {
		return domain.AcceptanceCriterion{}, storeErr(domain.EntityAcceptanceCriterion, ac.ID, err)
	}
	e.created(domain.EntityAcceptanceCriterion, 1)
	return e.GetAcceptanceCriterion(ctx, ac.ID)
}

func (e Engine) UpdateAcceptanceCriterion(ctx context.Context, id string, in AcceptanceCriterionUpdate) (domain.AcceptanceCriterion, error) {
	err := e.inTx(ctx, func(r repo.Repo) error {
		ac, err := r.GetAcceptanceCriterion(ctx, id)
		if err != nil {
			return err
		}
		if err := e.checkEditable(domain.EntityAcceptanceCriterion, id, ac.Status, in.statusOnly(), in.Status); err != nil {
			return err
		}
		if in.StoryID != nil && *in.StoryID != ac.StoryID {
			if err := e.requireRef(ctx, r, domain.EntityStory, *in.StoryID); err != nil {
				return err
			}
			ac.StoryID = *in.StoryID
		}
		if in.Key != nil && *in.Key != "" {
			ac.Key = *in.Key
		}
		if in.Given != nil {
			ac.Given = *in.Given
		}
		if in.When != nil {
			ac.When = *in.When
		}
		if in.Then != nil {
			ac.Then = *in.Then
		}
		if in.Valid != nil {
			ac.Valid = *in.Valid
		}
		if in.Risk != nil {
			if !domain.ValidLevel(*in.Risk) {
				return invalid("risk", "must be one of Low, Medium, High")
			}
			ac.Risk = *in.Risk
		}
		if in.Comments != nil {
			ac.Comments = *in.Comments
		}
		if in.Status != nil {
			if ac.Status, err = e.resolveStatus(domain.EntityAcceptanceCriterion, "status", *in.Status); err != nil {
				return err
			}
		}
		e.touch(&ac.Audit, in.UpdatedBy)
		return r.UpdateAcceptanceCriterion(ctx, ac)
	})
	if err != nil {
		return domain.AcceptanceCriterion{}, storeErr(domain.EntityAcceptanceCriterion, id, err)
	}
	return e.GetAcceptanceCriterion(ctx, id)
}

func (e Engine) DeleteAcceptanceCriterion(ctx context.Context, id string) error {
	_, err := e.Delete(ctx, domain.EntityAcceptanceCriterion, id)
	return err
}
