package reqlinesdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqline/internal/app"
	"reqline/internal/config"
	"reqline/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	a, err := app.Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	handler, err := server.New(server.Config{Engine: a.Engine, BasePath: "/api", Log: zerolog.Nop(), Metrics: a.Metrics})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	c := New(srv.URL)
	c.HTTPClient = srv.Client()
	return c
}

type fixture struct {
	project Project
	actor   Actor
	epic    Epic
	story   Story
	ac      AcceptanceCriterion
	tc      TestCase
	set     TestSet
	runs    []TestRun
}

func seed(t *testing.T, ctx context.Context, c *Client) fixture {
	t.Helper()
	var f fixture
	var err error
	f.project, err = c.CreateProject(ctx, ProjectInput{Name: String("Checkout")})
	require.NoError(t, err)
	f.actor, err = c.CreateActor(ctx, ActorInput{ProjectID: String(f.project.ID), Name: String("Shopper")})
	require.NoError(t, err)
	f.epic, err = c.CreateEpic(ctx, EpicInput{ProjectID: String(f.project.ID), Title: String("Payments")})
	require.NoError(t, err)
	f.story, err = c.CreateStory(ctx, StoryInput{EpicID: String(f.epic.ID), ActorID: String(f.actor.ID), Action: String("pay")})
	require.NoError(t, err)
	f.ac, err = c.CreateAcceptanceCriterion(ctx, AcceptanceCriterionInput{StoryID: String(f.story.ID), Given: String("a cart")})
	require.NoError(t, err)
	f.tc, err = c.CreateTestCase(ctx, TestCaseInput{AcceptanceCriterionID: String(f.ac.ID), Steps: String("pay")})
	require.NoError(t, err)
	f.set, err = c.CreateTestSet(ctx, TestSetInput{Title: String("Regression")})
	require.NoError(t, err)
	f.runs, err = c.AddTestCasesToSet(ctx, f.set.ID, []string{f.tc.ID}, "bob")
	require.NoError(t, err)
	return f
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.GetEpic(ctx, "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, "epic missing not found", apiErr.Message)

	_, err = c.CreateEpic(ctx, EpicInput{Title: String(" ")})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "title", apiErr.Details[0].Field)

	key, err := c.NextEpicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EP-01", key)
}

func TestStoreLoadAndCascade(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	f := seed(t, ctx, c)

	s := NewStore(c)
	require.NoError(t, s.Load(ctx))
	assert.Len(t, s.Projects(), 1)
	assert.Len(t, s.Epics(f.project.ID), 1)
	assert.Len(t, s.Stories(f.epic.ID), 1)
	assert.Len(t, s.TestRuns(f.set.ID), 1)
	assert.NotEmpty(t, s.Statuses())

	require.NoError(t, s.DeleteEpic(ctx, f.epic.ID))
	_, ok := s.Epic(f.epic.ID)
	assert.False(t, ok)
	_, ok = s.Story(f.story.ID)
	assert.False(t, ok)
	_, ok = s.AcceptanceCriterion(f.ac.ID)
	assert.False(t, ok)
	_, ok = s.TestCase(f.tc.ID)
	assert.False(t, ok)
	assert.Empty(t, s.TestRuns(f.set.ID))
	_, ok = s.TestSet(f.set.ID)
	assert.True(t, ok)

	// The local state matches a fresh load.
	fresh := NewStore(c)
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, fresh.Stories(""), s.Stories(""))
	assert.Equal(t, fresh.TestRuns(""), s.TestRuns(""))
}

func TestStoreAppliesOnlyAfterSuccess(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	f := seed(t, ctx, c)
	s := NewStore(c)
	require.NoError(t, s.Load(ctx))

	_, err := s.CreateStory(ctx, StoryInput{EpicID: String("missing")})
	require.Error(t, err)
	assert.Len(t, s.Stories(""), 1)

	_, err = s.UpdateEpic(ctx, f.epic.ID, EpicInput{Status: String("Locked")})
	require.NoError(t, err)
	_, err = s.UpdateEpic(ctx, f.epic.ID, EpicInput{Title: String("Edited")})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 423, apiErr.Status)
	ep, _ := s.Epic(f.epic.ID)
	assert.Equal(t, "Payments", ep.Title)
	assert.Equal(t, "Locked", ep.Status)

	err = s.DeleteEpic(ctx, f.epic.ID)
	require.Error(t, err)
	_, ok := s.Story(f.story.ID)
	assert.True(t, ok)

	renamed, err := s.UpdateActor(ctx, f.actor.ID, ActorInput{Name: String("Buyer")})
	require.NoError(t, err)
	assert.Equal(t, "Buyer", renamed.Name)
	st, _ := s.Story(f.story.ID)
	assert.Equal(t, "Buyer", st.Actor)
}

func TestSetTestRunStatus(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	f := seed(t, ctx, c)
	s := NewStore(c)
	require.NoError(t, s.Load(ctx))
	runID := f.runs[0].ID

	run, err := s.SetTestRunStatus(ctx, runID, "Pass", "carol")
	require.NoError(t, err)
	assert.Equal(t, "Pass", run.Status)
	require.NotNil(t, run.ExecutedBy)
	assert.Equal(t, "carol", *run.ExecutedBy)

	_, err = s.SetTestRunStatus(ctx, runID, "Exploded", "carol")
	require.Error(t, err)
	local, ok := s.TestRun(runID)
	require.True(t, ok)
	assert.Equal(t, "Pass", local.Status)
}

func TestDeleteProjectDetachesLocally(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	f := seed(t, ctx, c)
	s := NewStore(c)
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.DeleteProject(ctx, f.project.ID))
	ep, ok := s.Epic(f.epic.ID)
	require.True(t, ok)
	assert.Nil(t, ep.ProjectID)
	assert.Empty(t, s.Actors(""))
	st, ok := s.Story(f.story.ID)
	require.True(t, ok)
	assert.Nil(t, st.ActorID)

	fresh := NewStore(c)
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, fresh.Epics(""), s.Epics(""))
	assert.Equal(t, fresh.Stories(""), s.Stories(""))
}

func TestStoryTransfer(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	f := seed(t, ctx, c)

	doc, err := c.ExportStory(ctx, f.story.ID)
	require.NoError(t, err)
	assert.Equal(t, "STORY-001", doc.Key)

	imported, err := c.ImportStory(ctx, f.epic.ID, doc, "dora")
	require.NoError(t, err)
	assert.Equal(t, "STORY-002", imported.Key)
	require.NotNil(t, imported.ActorID)
	assert.Equal(t, f.actor.ID, *imported.ActorID)

	_, err = c.ArchiveStoryExport(ctx, f.story.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Status)
}
