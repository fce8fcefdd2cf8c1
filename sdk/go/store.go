package reqlinesdk

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Store keeps a client-side copy of every collection, indexed by id.
// Mutations go to the server first and are applied locally only once it
// accepts them, except SetTestRunStatus which updates optimistically.
// Accessors return copies and are safe for concurrent use.
type Store struct {
	client *Client

	mu       sync.RWMutex
	projects map[string]Project
	actors   map[string]Actor
	epics    map[string]Epic
	stories  map[string]Story
	criteria map[string]AcceptanceCriterion
	cases    map[string]TestCase
	sets     map[string]TestSet
	runs     map[string]TestRun
	statuses []Status
}

func NewStore(c *Client) *Store {
	s := &Store{client: c}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.projects = map[string]Project{}
	s.actors = map[string]Actor{}
	s.epics = map[string]Epic{}
	s.stories = map[string]Story{}
	s.criteria = map[string]AcceptanceCriterion{}
	s.cases = map[string]TestCase{}
	s.sets = map[string]TestSet{}
	s.runs = map[string]TestRun{}
	s.statuses = nil
}

// Load replaces the local state with a fresh copy of every collection.
func (s *Store) Load(ctx context.Context) error {
	var (
		projects []Project
		actors   []Actor
		epics    []Epic
		stories  []Story
		criteria []AcceptanceCriterion
		cases    []TestCase
		sets     []TestSet
		runs     []TestRun
		statuses []Status
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { projects, err = s.client.ListProjects(ctx, ""); return })
	g.Go(func() (err error) { actors, err = s.client.ListActors(ctx, ""); return })
	g.Go(func() (err error) { epics, err = s.client.ListEpics(ctx, "", ""); return })
	g.Go(func() (err error) { stories, err = s.client.ListStories(ctx, "", ""); return })
	g.Go(func() (err error) { criteria, err = s.client.ListAcceptanceCriteria(ctx, ""); return })
	g.Go(func() (err error) { cases, err = s.client.ListTestCases(ctx, ""); return })
	g.Go(func() (err error) { sets, err = s.client.ListTestSets(ctx, ""); return })
	g.Go(func() (err error) { runs, err = s.client.ListTestRuns(ctx, "", ""); return })
	g.Go(func() (err error) { statuses, err = s.client.Statuses(ctx, ""); return })
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	index(s.projects, projects, func(v Project) string { return v.ID })
	index(s.actors, actors, func(v Actor) string { return v.ID })
	index(s.epics, epics, func(v Epic) string { return v.ID })
	index(s.stories, stories, func(v Story) string { return v.ID })
	index(s.criteria, criteria, func(v AcceptanceCriterion) string { return v.ID })
	index(s.cases, cases, func(v TestCase) string { return v.ID })
	index(s.sets, sets, func(v TestSet) string { return v.ID })
	index(s.runs, runs, func(v TestRun) string { return v.ID })
	s.statuses = statuses
	return nil
}

func index[T any](m map[string]T, items []T, id func(T) string) {
	for _, v := range items {
		m[id(v)] = v
	}
}

// values returns the map's values matching keep, ordered by key then id.
func values[T any](m map[string]T, keep func(T) bool, order func(T) (string, string)) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, ii := order(out[i])
		kj, ij := order(out[j])
		if ki != kj {
			return ki < kj
		}
		return ii < ij
	})
	return out
}

func lookup[T any](mu *sync.RWMutex, m map[string]T, id string) (T, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := m[id]
	return v, ok
}

func projectOrder(v Project) (string, string) { return v.Name, v.ID }
func actorOrder(v Actor) (string, string)     { return v.Name, v.ID }
func epicOrder(v Epic) (string, string)       { return v.Key, v.ID }
func storyOrder(v Story) (string, string)     { return v.Key, v.ID }
func criterionOrder(v AcceptanceCriterion) (string, string) {
	return v.Key, v.ID
}
func caseOrder(v TestCase) (string, string) { return v.Key, v.ID }
func setOrder(v TestSet) (string, string)   { return v.Key, v.ID }
func runOrder(v TestRun) (string, string)   { return v.CreatedAt, v.ID }

func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.projects, nil, projectOrder)
}

func (s *Store) Project(id string) (Project, bool) { return lookup(&s.mu, s.projects, id) }

func (s *Store) Actors(projectID string) []Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.actors, func(v Actor) bool { return projectID == "" || v.ProjectID == projectID }, actorOrder)
}

func (s *Store) Actor(id string) (Actor, bool) { return lookup(&s.mu, s.actors, id) }

// Epics lists epics of a project, or every epic when projectID is empty.
func (s *Store) Epics(projectID string) []Epic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.epics, func(v Epic) bool {
		return projectID == "" || (v.ProjectID != nil && *v.ProjectID == projectID)
	}, epicOrder)
}

func (s *Store) Epic(id string) (Epic, bool) { return lookup(&s.mu, s.epics, id) }

func (s *Store) Stories(epicID string) []Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.stories, func(v Story) bool { return epicID == "" || v.EpicID == epicID }, storyOrder)
}

func (s *Store) Story(id string) (Story, bool) { return lookup(&s.mu, s.stories, id) }

func (s *Store) AcceptanceCriteria(storyID string) []AcceptanceCriterion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.criteria, func(v AcceptanceCriterion) bool { return storyID == "" || v.StoryID == storyID }, criterionOrder)
}

func (s *Store) AcceptanceCriterion(id string) (AcceptanceCriterion, bool) {
	return lookup(&s.mu, s.criteria, id)
}

func (s *Store) TestCases(acceptanceCriterionID string) []TestCase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.cases, func(v TestCase) bool {
		return acceptanceCriterionID == "" || v.AcceptanceCriterionID == acceptanceCriterionID
	}, caseOrder)
}

func (s *Store) TestCase(id string) (TestCase, bool) { return lookup(&s.mu, s.cases, id) }

func (s *Store) TestSets() []TestSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.sets, nil, setOrder)
}

func (s *Store) TestSet(id string) (TestSet, bool) { return lookup(&s.mu, s.sets, id) }

func (s *Store) TestRuns(testSetID string) []TestRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.runs, func(v TestRun) bool { return testSetID == "" || v.TestSetID == testSetID }, runOrder)
}

func (s *Store) TestRun(id string) (TestRun, bool) { return lookup(&s.mu, s.runs, id) }

// Statuses returns the registry rows loaded by Load, in rank order.
func (s *Store) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Status(nil), s.statuses...)
}

// put stores v under id once the server accepted it.
func put[T any](s *Store, m map[string]T, id string, v T) {
	s.mu.Lock()
	m[id] = v
	s.mu.Unlock()
}

func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (Project, error) {
	v, err := s.client.CreateProject(ctx, in)
	if err != nil {
		return Project{}, err
	}
	put(s, s.projects, v.ID, v)
	return v, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, in ProjectInput) (Project, error) {
	v, err := s.client.UpdateProject(ctx, id, in)
	if err != nil {
		return Project{}, err
	}
	put(s, s.projects, v.ID, v)
	return v, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.client.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneProject(id)
	return nil
}

func (s *Store) CreateActor(ctx context.Context, in ActorInput) (Actor, error) {
	v, err := s.client.CreateActor(ctx, in)
	if err != nil {
		return Actor{}, err
	}
	put(s, s.actors, v.ID, v)
	return v, nil
}

// UpdateActor also refreshes the actor name on the actor's stories, as the server does.
func (s *Store) UpdateActor(ctx context.Context, id string, in ActorInput) (Actor, error) {
	v, err := s.client.UpdateActor(ctx, id, in)
	if err != nil {
		return Actor{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[v.ID] = v
	for sid, st := range s.stories {
		if st.ActorID != nil && *st.ActorID == v.ID {
			st.Actor = v.Name
			s.stories[sid] = st
		}
	}
	return v, nil
}

func (s *Store) DeleteActor(ctx context.Context, id string) error {
	if err := s.client.DeleteActor(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneActor(id)
	return nil
}

func (s *Store) CreateEpic(ctx context.Context, in EpicInput) (Epic, error) {
	v, err := s.client.CreateEpic(ctx, in)
	if err != nil {
		return Epic{}, err
	}
	put(s, s.epics, v.ID, v)
	return v, nil
}

func (s *Store) UpdateEpic(ctx context.Context, id string, in EpicInput) (Epic, error) {
	v, err := s.client.UpdateEpic(ctx, id, in)
	if err != nil {
		return Epic{}, err
	}
	put(s, s.epics, v.ID, v)
	return v, nil
}

func (s *Store) DeleteEpic(ctx context.Context, id string) error {
	if err := s.client.DeleteEpic(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneEpic(id)
	return nil
}

func (s *Store) CreateStory(ctx context.Context, in StoryInput) (Story, error) {
	v, err := s.client.CreateStory(ctx, in)
	if err != nil {
		return Story{}, err
	}
	put(s, s.stories, v.ID, v)
	return v, nil
}

func (s *Store) UpdateStory(ctx context.Context, id string, in StoryInput) (Story, error) {
	v, err := s.client.UpdateStory(ctx, id, in)
	if err != nil {
		return Story{}, err
	}
	put(s, s.stories, v.ID, v)
	return v, nil
}

func (s *Store) DeleteStory(ctx context.Context, id string) error {
	if err := s.client.DeleteStory(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneStory(id)
	return nil
}

func (s *Store) CreateAcceptanceCriterion(ctx context.Context, in AcceptanceCriterionInput) (AcceptanceCriterion, error) {
	v, err := s.client.CreateAcceptanceCriterion(ctx, in)
	if err != nil {
		return AcceptanceCriterion{}, err
	}
	put(s, s.criteria, v.ID, v)
	return v, nil
}

func (s *Store) UpdateAcceptanceCriterion(ctx context.Context, id string, in AcceptanceCriterionInput) (AcceptanceCriterion, error) {
	v, err := s.client.UpdateAcceptanceCriterion(ctx, id, in)
	if err != nil {
		return AcceptanceCriterion{}, err
	}
	put(s, s.criteria, v.ID, v)
	return v, nil
}

func (s *Store) DeleteAcceptanceCriterion(ctx context.Context, id string) error {
	if err := s.client.DeleteAcceptanceCriterion(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCriterion(id)
	return nil
}

func (s *Store) CreateTestCase(ctx context.Context, in TestCaseInput) (TestCase, error) {
	v, err := s.client.CreateTestCase(ctx, in)
	if err != nil {
		return TestCase{}, err
	}
	put(s, s.cases, v.ID, v)
	return v, nil
}

func (s *Store) UpdateTestCase(ctx context.Context, id string, in TestCaseInput) (TestCase, error) {
	v, err := s.client.UpdateTestCase(ctx, id, in)
	if err != nil {
		return TestCase{}, err
	}
	put(s, s.cases, v.ID, v)
	return v, nil
}

func (s *Store) DeleteTestCase(ctx context.Context, id string) error {
	if err := s.client.DeleteTestCase(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneTestCase(id)
	return nil
}

func (s *Store) CreateTestSet(ctx context.Context, in TestSetInput) (TestSet, error) {
	v, err := s.client.CreateTestSet(ctx, in)
	if err != nil {
		return TestSet{}, err
	}
	put(s, s.sets, v.ID, v)
	return v, nil
}

func (s *Store) UpdateTestSet(ctx context.Context, id string, in TestSetInput) (TestSet, error) {
	v, err := s.client.UpdateTestSet(ctx, id, in)
	if err != nil {
		return TestSet{}, err
	}
	put(s, s.sets, v.ID, v)
	return v, nil
}

func (s *Store) DeleteTestSet(ctx context.Context, id string) error {
	if err := s.client.DeleteTestSet(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for rid, r := range s.runs {
		if r.TestSetID == id {
			delete(s.runs, rid)
		}
	}
	delete(s.sets, id)
	return nil
}

// AddTestCasesToSet creates runs on the server and adds them locally.
func (s *Store) AddTestCasesToSet(ctx context.Context, testSetID string, testCaseIDs []string, createdBy string) ([]TestRun, error) {
	runs, err := s.client.AddTestCasesToSet(ctx, testSetID, testCaseIDs, createdBy)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range runs {
		s.runs[r.ID] = r
	}
	return runs, nil
}

func (s *Store) UpdateTestRun(ctx context.Context, id string, in TestRunInput) (TestRun, error) {
	v, err := s.client.UpdateTestRun(ctx, id, in)
	if err != nil {
		return TestRun{}, err
	}
	put(s, s.runs, v.ID, v)
	return v, nil
}

// SetTestRunStatus shows the new status locally before the server answers
// and restores the previous run if the server rejects it.
func (s *Store) SetTestRunStatus(ctx context.Context, id, status, updatedBy string) (TestRun, error) {
	s.mu.Lock()
	prev, known := s.runs[id]
	if known {
		next := prev
		next.Status = status
		s.runs[id] = next
	}
	s.mu.Unlock()

	v, err := s.client.UpdateTestRun(ctx, id, TestRunInput{Status: &status, UpdatedBy: updatedBy})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if known {
			s.runs[id] = prev
		}
		return TestRun{}, err
	}
	s.runs[v.ID] = v
	return v, nil
}

func (s *Store) DeleteTestRun(ctx context.Context, id string) error {
	if err := s.client.DeleteTestRun(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
	return nil
}

// The prune helpers mirror the server's cascade. Callers hold s.mu.

func (s *Store) pruneProject(id string) {
	for eid, ep := range s.epics {
		if ep.ProjectID != nil && *ep.ProjectID == id {
			ep.ProjectID = nil
			s.epics[eid] = ep
		}
	}
	for aid, a := range s.actors {
		if a.ProjectID == id {
			s.pruneActor(aid)
		}
	}
	delete(s.projects, id)
}

func (s *Store) pruneActor(id string) {
	for sid, st := range s.stories {
		if st.ActorID != nil && *st.ActorID == id {
			st.ActorID = nil
			s.stories[sid] = st
		}
	}
	delete(s.actors, id)
}

func (s *Store) pruneEpic(id string) {
	for sid, st := range s.stories {
		if st.EpicID == id {
			s.pruneStory(sid)
		}
	}
	delete(s.epics, id)
}

func (s *Store) pruneStory(id string) {
	for cid, ac := range s.criteria {
		if ac.StoryID == id {
			s.pruneCriterion(cid)
		}
	}
	delete(s.stories, id)
}

func (s *Store) pruneCriterion(id string) {
	for tid, tc := range s.cases {
		if tc.AcceptanceCriterionID == id {
			s.pruneTestCase(tid)
		}
	}
	delete(s.criteria, id)
}

func (s *Store) pruneTestCase(id string) {
	for rid, r := range s.runs {
		if r.TestCaseID == id {
			delete(s.runs, rid)
		}
	}
	delete(s.cases, id)
}
