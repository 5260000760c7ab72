package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"provsurvey/internal/model"
	"provsurvey/internal/repository"
	"provsurvey/internal/survey"
)

func newTestStore(t *testing.T) repository.AnswerRepository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "answers.db")
	db, err := repository.OpenSQL(context.Background(), repository.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLAnswerRepository(db)
}

func loadRevision(t *testing.T, name string) *survey.Registry {
	t.Helper()
	reg, err := survey.LoadRevision(name)
	require.NoError(t, err)
	return reg
}

type recordedEvent struct {
	Type    string
	Payload ProgressEvent
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastToMonitors(msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: msgType, Payload: payload.(ProgressEvent)})
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

// respondent drives the flow like a browser: it keeps the session position
// and follows redirects
type respondent struct {
	t    *testing.T
	flow *FlowService
	pos  model.Position
	path []string // every state landed on
}

func newRespondent(t *testing.T, flow *FlowService) *respondent {
	return &respondent{t: t, flow: flow, pos: model.Position{Locale: "en"}}
}

func (r *respondent) do(id string, sub *model.Submission) *FlowResult {
	r.t.Helper()
	res, err := r.flow.Transition(context.Background(), r.pos, FlowRequest{Locale: r.pos.Locale, QuestionID: id, Submission: sub})
	require.NoError(r.t, err)
	r.pos = res.Position
	return res
}

// follow chases redirects until a page renders
func (r *respondent) follow(res *FlowResult) *FlowResult {
	r.t.Helper()
	for hops := 0; res.Redirect != ""; hops++ {
		require.Less(r.t, hops, 30, "redirect loop")
		r.path = append(r.path, res.Redirect)
		res = r.do(res.Redirect, nil)
	}
	return res
}

func (r *respondent) get(id string) *FlowResult {
	r.t.Helper()
	return r.follow(r.do(id, nil))
}

func (r *respondent) answer(id string, values map[string]string) *FlowResult {
	r.t.Helper()
	return r.follow(r.do(id, &model.Submission{Action: model.ActionNext, Values: values}))
}

func (r *respondent) start() *FlowResult {
	r.t.Helper()
	return r.follow(r.do(model.StateIndex, &model.Submission{Action: model.ActionStart}))
}

func opt(v string) map[string]string {
	return map[string]string{model.OptionsField: v}
}

func boxes(names ...string) map[string]string {
	values := make(map[string]string)
	for _, n := range names {
		values[n] = "y"
	}
	return values
}

func storedQuestions(t *testing.T, store repository.AnswerRepository, rid string) map[string]bool {
	t.Helper()
	rows, err := store.ListByRespondent(context.Background(), rid)
	require.NoError(t, err)
	out := make(map[string]bool)
	for _, a := range rows {
		out[a.QuestionID] = true
	}
	return out
}
