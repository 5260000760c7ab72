package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provsurvey/internal/model"
)

func newTestFlow(t *testing.T, revision string) (*FlowService, *recordingBroadcaster) {
	t.Helper()
	store := newTestStore(t)
	flow := NewFlowService(loadRevision(t, revision), store, nil)
	b := &recordingBroadcaster{}
	flow.SetBroadcaster(b)
	return flow, b
}

func TestStartMintsRespondentAndLandsOnFirstQuestion(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	res := r.get(model.StateIndex)
	assert.Equal(t, []string{model.ActionStart}, res.View.Actions)
	assert.False(t, r.pos.Started())

	res = r.start()
	require.NotNil(t, res.View)
	assert.Equal(t, "p1", res.View.ID)
	assert.Len(t, r.pos.RespondentID, 36)
	assert.Equal(t, []string{model.StateIndex, "p1"}, r.pos.Visited)

	fields, err := flow.answers.Get(context.Background(), r.pos.RespondentID, model.StateIndex)
	require.NoError(t, err)
	assert.Equal(t, model.Fields{model.MarkerField: model.MarkerStarted}, fields)
	assert.Equal(t, []string{EventRespondentStarted}, events.types())
}

func TestRespondentIDsAreUnique(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		r := newRespondent(t, flow)
		r.start()
		require.False(t, seen[r.pos.RespondentID])
		seen[r.pos.RespondentID] = true
	}
}

func TestExperimentCountZeroSkipsToFinish(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	rid := r.pos.RespondentID

	r.answer("p1", opt("phd"))
	res := r.answer("p2", opt("0"))

	assert.Equal(t, model.StateFinish, res.View.ID)
	assert.True(t, res.View.Progress.Finished)
	assert.Equal(t, []string{"p2", model.StateFinish}, r.path[len(r.path)-2:])
	assert.False(t, r.pos.Started())
	assert.Equal(t, "en", r.pos.Locale)

	stored := storedQuestions(t, flow.answers, rid)
	assert.Equal(t, map[string]bool{"index": true, "p1": true, "p2": true, "finish": true}, stored)

	marker, err := flow.answers.Get(context.Background(), rid, model.StateFinish)
	require.NoError(t, err)
	assert.Equal(t, model.MarkerFinal, marker[model.MarkerField])
	assert.Contains(t, events.types(), EventRespondentFinished)
}

func TestQuestionBeforeStartRedirectsToIndexWithFlash(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	res := r.do("p3", nil)
	assert.Equal(t, model.StateIndex, res.Redirect)

	res = r.follow(res)
	assert.Equal(t, model.StateIndex, res.View.ID)
	assert.Equal(t, FlashInvalidSession, res.View.Flash)

	// flash is one-shot
	res = r.get(model.StateIndex)
	assert.Empty(t, res.View.Flash)
}

func TestGuardRedirectsToMostRecentlyVisited(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))

	for _, id := range []string{"p4", "t", "i1", "f3", "a2b"} {
		res := r.do(id, nil)
		assert.Equal(t, "p2", res.Redirect, "requesting %s", id)
	}

	// nothing but the start page visited: back to the first question
	fresh := newRespondent(t, flow)
	fresh.do(model.StateIndex, &model.Submission{Action: model.ActionStart})
	res := fresh.do("p2", nil)
	assert.Equal(t, "p1", res.Redirect)
}

func TestGuardAllowsBackNavigation(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))
	r.answer("p2", opt("1"))
	r.answer("p3", opt("2_to_5"))

	res := r.do("p2", nil)
	require.Empty(t, res.Redirect)
	assert.Equal(t, "p2", res.View.ID)
	assert.Equal(t, "1", res.View.Fields[0].Value)
}

func TestUnknownQuestionFallsBackToLastVisited(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))

	res := r.do("u3", nil)
	assert.Equal(t, "p2", res.Redirect)
}

func TestInvalidChoiceRerendersWithoutSaving(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()

	res := r.do("p1", &model.Submission{Action: model.ActionNext, Values: opt("astronaut")})
	require.Empty(t, res.Redirect)
	assert.Equal(t, "p1", res.View.ID)
	assert.NotEmpty(t, res.View.Errors[model.OptionsField])
	assert.Equal(t, "astronaut", res.View.Fields[0].Value)

	fields, err := flow.answers.Get(context.Background(), r.pos.RespondentID, "p1")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestEmptyRadioStoresNoneSentinel(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()

	res := r.answer("p1", nil)
	assert.Equal(t, "p2", res.View.ID)

	fields, err := flow.answers.Get(context.Background(), r.pos.RespondentID, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.Fields{model.OptionsField: model.NoneValue}, fields)

	// visited but not answered
	require.Len(t, res.View.Progress.Items, 3)
	assert.Equal(t, model.ProgressItem{ID: "p1"}, res.View.Progress.Items[1])
	assert.Equal(t, model.ProgressItem{ID: "p2", Current: true}, res.View.Progress.Items[2])
}

// reachTools answers the profile block with the given tool boxes checked
func reachTools(r *respondent, tools ...string) *FlowResult {
	r.start()
	r.answer("p1", opt("masters"))
	r.answer("p2", opt("2_to_5"))
	r.answer("p3", opt("1_to_2"))
	r.answer("p4", boxes("university_research"))
	return r.answer("t", boxes(tools...))
}

func TestZeroToolsErasesDependentChain(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	res := reachTools(r, "wfms", "script")
	rid := r.pos.RespondentID
	assert.Equal(t, "w", res.View.ID)
	r.answer("w", boxes("galaxy"))
	r.answer("s", boxes("python"))
	r.answer("c", opt("wfms"))
	res = r.answer("r", boxes("setup"))
	assert.Equal(t, "a1", res.View.ID)
	for _, id := range []string{"w", "s", "c", "r"} {
		require.True(t, storedQuestions(t, flow.answers, rid)[id], id)
	}

	// back to the tools question, uncheck everything
	res = r.get("t")
	require.Equal(t, "t", res.View.ID)
	res = r.answer("t", nil)

	assert.Equal(t, model.StateFinish, res.View.ID)
	stored := storedQuestions(t, flow.answers, rid)
	for _, id := range []string{"w", "s", "c", "r"} {
		assert.False(t, stored[id], "%s should be erased", id)
	}
	assert.True(t, stored["p4"])
}

func TestSingleToolSkipsUnrelatedFollowUps(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	res := reachTools(r, "prog")
	assert.Equal(t, "r", res.View.ID)
	assert.Equal(t, []string{"w", "s", "c", "r"}, r.path[len(r.path)-4:])
	assert.False(t, r.pos.HasVisited("w"))
	assert.False(t, r.pos.HasVisited("s"))
	assert.False(t, r.pos.HasVisited("c"))

	res = r.answer("r", boxes("experience"))
	assert.Equal(t, "a1", res.View.ID)
}

func TestNoPreferenceSkipsReasons(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	reachTools(r, "script", "prog")
	res := r.answer("s", boxes("julia"))
	assert.Equal(t, "c", res.View.ID)

	res = r.answer("c", opt("no"))
	assert.Equal(t, "a1", res.View.ID)
	assert.False(t, storedQuestions(t, flow.answers, r.pos.RespondentID)["r"])
}

func TestUnknownProvenanceShortcutsToFinish(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	reachTools(r, "prog")
	r.answer("r", boxes("experience"))
	res := r.answer("a1", opt("no"))
	require.Equal(t, "a2a", res.View.ID)
	r.answer("a2a", boxes("deadline"))
	r.answer("i1", opt("no"))
	rid := r.pos.RespondentID
	require.True(t, storedQuestions(t, flow.answers, rid)["i1"])

	res = r.get("a1")
	require.Equal(t, "a1", res.View.ID)
	res = r.answer("a1", opt("what_is_provenance"))

	assert.Equal(t, model.StateFinish, res.View.ID)
	stored := storedQuestions(t, flow.answers, rid)
	for _, id := range []string{"a2a", "a2b", "i1", "i2", "i3", "i4", "f1", "f2", "f3"} {
		assert.False(t, stored[id], "%s should not exist", id)
	}
	assert.True(t, stored["a1"])
}

func TestChangingAnalysisAnswerSwapsBranch(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	reachTools(r, "prog")
	r.answer("r", nil)
	r.answer("a1", opt("no"))
	r.answer("a2a", boxes("no_tools"))
	rid := r.pos.RespondentID

	r.get("a1")
	res := r.answer("a1", opt("yes"))
	assert.Equal(t, "a2b", res.View.ID)
	assert.False(t, storedQuestions(t, flow.answers, rid)["a2a"])
	assert.False(t, r.pos.HasVisited("a2a"))

	// the invalidated branch sends the respondent to the furthest visited question
	res = r.do("a2a", nil)
	assert.Equal(t, "i1", res.Redirect)
}

func TestRestartKeepsHistory(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))
	old := r.pos.RespondentID

	res := r.get(model.StateIndex)
	assert.Equal(t, []string{model.ActionRestart, model.ActionNext}, res.View.Actions)

	res = r.follow(r.do(model.StateIndex, &model.Submission{Action: model.ActionRestart}))
	assert.Equal(t, "p1", res.View.ID)
	require.NotEqual(t, old, r.pos.RespondentID)
	assert.Equal(t, []string{model.StateIndex, "p1"}, r.pos.Visited)

	p1, err := flow.answers.Get(context.Background(), old, "p1")
	require.NoError(t, err)
	assert.Equal(t, "phd", p1[model.OptionsField])
	marker, err := flow.answers.Get(context.Background(), old, model.StateFinish)
	require.NoError(t, err)
	assert.Equal(t, model.MarkerRestart, marker[model.MarkerField])

	assert.Equal(t, map[string]bool{"index": true}, storedQuestions(t, flow.answers, r.pos.RespondentID))
	assert.Contains(t, events.types(), EventRespondentRestarted)
}

func TestContinueResumesAtFurthestQuestion(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))
	rid := r.pos.RespondentID

	r.get(model.StateIndex)
	res := r.follow(r.do(model.StateIndex, &model.Submission{Action: model.ActionNext}))
	assert.Equal(t, "p2", res.View.ID)
	assert.Equal(t, rid, r.pos.RespondentID)
}

func TestCompleteSurvey(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	reachTools(r, "wfms", "script")
	r.answer("w", map[string]string{"kepler": "y", "other_e": "y", "other": "Nextflow"})
	r.answer("s", boxes("python"))
	r.answer("c", opt("script"))
	r.answer("r", boxes("flexibility"))
	res := r.answer("a1", opt("yes"))
	require.Equal(t, "a2b", res.View.ID)
	res = r.answer("a2b", boxes("SQL"))
	require.Equal(t, "i1", res.View.ID)

	ids := make([]string, 0, len(res.View.Progress.Items))
	for _, item := range res.View.Progress.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"index", "p1", "p2", "p3", "p4", "t", "w", "s", "c", "r", "a1", "a2b", "i1"}, ids)
	assert.Equal(t, 3, res.View.Progress.MinutesRemaining)

	r.answer("i1", opt("wfms,script"))
	r.answer("i2", opt("yes"))
	res = r.answer("i3", opt("no"))
	assert.Equal(t, "f1", res.View.ID, "i4 is skipped when i3 is no")
	r.answer("f1", opt("yes"))
	res = r.answer("f2", opt("no"))
	require.Equal(t, "f3", res.View.ID)

	res = r.answer("f3", map[string]string{"email": ""})
	assert.Equal(t, "You must specify the email!", res.View.Errors["email"])
	res = r.answer("f3", map[string]string{"email": "not-an-email"})
	assert.Equal(t, "The email must be valid!", res.View.Errors["email"])
	rid := r.pos.RespondentID

	res = r.answer("f3", map[string]string{"email": "someone@example.org"})
	assert.Equal(t, model.StateFinish, res.View.ID)

	stored := storedQuestions(t, flow.answers, rid)
	assert.False(t, stored["i4"])
	assert.False(t, stored["a2a"])
	assert.True(t, stored["f3"])
	assert.Equal(t, EventRespondentFinished, events.types()[len(events.types())-1])
}

func TestFinishSkipsEmailWithoutConsent(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	reachTools(r, "prog")
	r.answer("r", nil)
	r.answer("a1", nil)
	r.answer("a2b", nil)
	r.answer("i1", nil)
	r.answer("i2", nil)
	r.answer("i3", opt("yes"))
	r.answer("i4", opt("yes"))
	r.answer("f1", opt("no"))
	res := r.answer("f2", opt("no"))
	assert.Equal(t, model.StateFinish, res.View.ID)
}

func TestFinishBeforeSurveyEndReturnsToLastQuestion(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	rid := r.pos.RespondentID
	r.answer("p1", opt("phd"))

	res := r.get(model.StateFinish)
	require.NotNil(t, res.View)
	assert.Equal(t, "p2", res.View.ID)
	assert.Equal(t, rid, r.pos.RespondentID)
	assert.NotContains(t, events.types(), EventRespondentFinished)

	marker, err := flow.answers.Get(context.Background(), rid, model.StateFinish)
	require.NoError(t, err)
	assert.Empty(t, marker)

	res = r.answer("p2", opt("0"))
	assert.Equal(t, model.StateFinish, res.View.ID)
	marker, err = flow.answers.Get(context.Background(), rid, model.StateFinish)
	require.NoError(t, err)
	assert.Equal(t, model.Fields{model.MarkerField: model.MarkerFinal}, marker)
}

func TestFinishTargetClearedByLaterAnswer(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	r := newRespondent(t, flow)
	r.start()
	rid := r.pos.RespondentID
	r.answer("p1", opt("phd"))

	// p2=0 leads to finish, but the respondent goes back and changes it
	res := r.do("p2", &model.Submission{Action: model.ActionNext, Values: opt("0")})
	require.Equal(t, model.StateFinish, res.Redirect)
	require.True(t, r.pos.Finishing)

	res = r.answer("p2", opt("1"))
	assert.Equal(t, "p3", res.View.ID)
	assert.False(t, r.pos.Finishing)

	res = r.get(model.StateFinish)
	assert.Equal(t, "p3", res.View.ID)
	marker, err := flow.answers.Get(context.Background(), rid, model.StateFinish)
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestFinishWithoutSessionOnlyRenders(t *testing.T) {
	flow, events := newTestFlow(t, "v2")
	r := newRespondent(t, flow)

	res := r.get(model.StateFinish)
	assert.Equal(t, model.StateFinish, res.View.ID)
	assert.Empty(t, events.types())

	rows, err := flow.answers.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFirstRevisionFlow(t *testing.T) {
	flow, _ := newTestFlow(t, "v1")
	r := newRespondent(t, flow)
	r.start()
	r.answer("p1", opt("phd"))
	r.answer("p2", opt("1"))
	r.answer("p3", opt("1_to_2"))
	res := r.answer("p4", nil)
	require.Equal(t, "u1", res.View.ID)

	res = r.answer("u1", boxes("script"))
	assert.Equal(t, "u3", res.View.ID)
	res = r.answer("u3", boxes("r_lang"))
	assert.Equal(t, "u5", res.View.ID)

	rid := r.pos.RespondentID
	r.get("u1")
	res = r.answer("u1", nil)
	assert.Equal(t, model.StateFinish, res.View.ID)
	stored := storedQuestions(t, flow.answers, rid)
	assert.False(t, stored["u3"])
}

type failingStore struct {
	err error
}

func (f failingStore) Save(context.Context, string, string, model.Fields) error { return f.err }
func (f failingStore) Erase(context.Context, string, ...string) error         { return f.err }
func (f failingStore) Get(context.Context, string, string) (model.Fields, error) {
	return nil, f.err
}
func (f failingStore) ListByRespondent(context.Context, string) ([]model.Answer, error) {
	return nil, f.err
}
func (f failingStore) ListAll(context.Context) ([]model.Answer, error) { return nil, f.err }

func TestStorageFailureIsPropagated(t *testing.T) {
	storeErr := model.NewStorageError("save answer", errors.New("disk full"))
	flow := NewFlowService(loadRevision(t, "v2"), failingStore{err: storeErr}, nil)

	_, err := flow.Transition(context.Background(), model.Position{Locale: "en"}, FlowRequest{
		QuestionID: model.StateIndex,
		Submission: &model.Submission{Action: model.ActionStart},
	})
	var se *model.StorageError
	require.ErrorAs(t, err, &se)

	_, err = flow.Transition(context.Background(), model.Position{RespondentID: "r1", Visited: []string{"index"}}, FlowRequest{
		QuestionID: "p1",
	})
	assert.ErrorAs(t, err, &se)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	flow, _ := newTestFlow(t, "v2")
	pos := model.Position{RespondentID: "r1", Locale: "en", Visited: []string{"index"}}

	_, err := flow.Transition(context.Background(), pos, FlowRequest{QuestionID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"index"}, pos.Visited)
}
