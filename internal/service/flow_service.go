package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"provsurvey/internal/model"
	"provsurvey/internal/repository"
	"provsurvey/internal/survey"
)

// FlowRequest is one GET (Submission nil) or POST against a survey state
type FlowRequest struct {
	Locale     string
	QuestionID string
	Submission *model.Submission
}

// FlowResult is either a redirect target or a page to render, plus the
// position to store back into the session
type FlowResult struct {
	Position model.Position
	Redirect string
	View     *model.QuestionView
}

// FlowService is the survey state machine
type FlowService struct {
	registry    *survey.Registry
	answers     repository.AnswerRepository
	nav         *Navigator
	log         *zap.Logger
	broadcaster Broadcaster
	newID       func() string
}

func NewFlowService(registry *survey.Registry, answers repository.AnswerRepository, log *zap.Logger) *FlowService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FlowService{
		registry: registry,
		answers:  answers,
		nav:      NewNavigator(registry),
		log:      log,
		newID:    uuid.NewString,
	}
}

// SetBroadcaster sets the monitor broadcaster
func (s *FlowService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Registry returns the question registry the flow runs on
func (s *FlowService) Registry() *survey.Registry {
	return s.registry
}

// Transition processes one request. pos is not modified; the updated
// position is returned in the result.
func (s *FlowService) Transition(ctx context.Context, pos model.Position, req FlowRequest) (*FlowResult, error) {
	pos = pos.Clone()
	if req.Locale != "" {
		pos.Locale = req.Locale
	}

	switch req.QuestionID {
	case "", model.StateIndex:
		return s.index(ctx, pos, req.Submission)
	case model.StateFinish:
		return s.finish(ctx, pos)
	}

	q, err := s.registry.Get(req.QuestionID)
	if errors.Is(err, model.ErrQuestionNotFound) {
		s.log.Debug("unknown question", zap.String("question", req.QuestionID))
		return redirect(pos, s.nav.LastVisited(pos)), nil
	}
	if err != nil {
		return nil, err
	}
	return s.question(ctx, pos, q, req.Submission)
}

func (s *FlowService) index(ctx context.Context, pos model.Position, sub *model.Submission) (*FlowResult, error) {
	if sub == nil {
		if pos.Started() {
			pos.Current = model.StateIndex
		}
		return &FlowResult{Position: pos, View: s.indexView(&pos)}, nil
	}

	switch sub.Action {
	case model.ActionNext:
		if pos.Started() {
			target := s.nav.LastVisited(pos)
			if target == model.StateIndex {
				target = s.registry.First()
			}
			return redirect(pos, target), nil
		}
		fallthrough
	case model.ActionStart, model.ActionRestart:
		if pos.Started() {
			old := pos.RespondentID
			if err := s.answers.Save(ctx, old, model.StateFinish, model.Fields{model.MarkerField: model.MarkerRestart}); err != nil {
				return nil, err
			}
			s.log.Info("respondent restarted", zap.String("respondent", old))
			s.emit(EventRespondentRestarted, ProgressEvent{RespondentID: old})
		}

		pos = pos.Reset()
		pos.RespondentID = s.newID()
		pos.Current = model.StateIndex
		pos.Visit(model.StateIndex)
		if err := s.answers.Save(ctx, pos.RespondentID, model.StateIndex, model.Fields{model.MarkerField: model.MarkerStarted}); err != nil {
			return nil, err
		}
		s.log.Info("respondent started", zap.String("respondent", pos.RespondentID), zap.String("locale", pos.Locale))
		s.emit(EventRespondentStarted, ProgressEvent{RespondentID: pos.RespondentID, Next: s.registry.First()})
		return redirect(pos, s.registry.First()), nil
	}

	view := s.indexView(&pos)
	view.Errors = model.ValidationErrors{model.MarkerField: "Unknown action"}
	return &FlowResult{Position: pos, View: view}, nil
}

func (s *FlowService) finish(ctx context.Context, pos model.Position) (*FlowResult, error) {
	if pos.Started() {
		if !pos.Finishing {
			target := s.nav.LastVisited(pos)
			s.log.Debug("finish requested before the survey led there",
				zap.String("respondent", pos.RespondentID),
				zap.String("redirect", target))
			return redirect(pos, target), nil
		}
		rid := pos.RespondentID
		if err := s.answers.Save(ctx, rid, model.StateFinish, model.Fields{model.MarkerField: model.MarkerFinal}); err != nil {
			return nil, err
		}
		s.log.Info("respondent finished", zap.String("respondent", rid))
		s.emit(EventRespondentFinished, ProgressEvent{RespondentID: rid})
	}

	pos = pos.Reset()
	pos.Current = model.StateFinish
	view := &model.QuestionView{
		Revision: s.registry.Revision(),
		ID:       model.StateFinish,
		Title:    "Thank you",
		Locale:   pos.Locale,
		Progress: model.Progress{Finished: true, Items: []model.ProgressItem{}},
	}
	return &FlowResult{Position: pos, View: view}, nil
}

func (s *FlowService) question(ctx context.Context, pos model.Position, q *survey.Question, sub *model.Submission) (*FlowResult, error) {
	if d := s.nav.Check(q, pos); !d.Proceed() {
		if d.Flash != "" {
			pos.Flash = d.Flash
		}
		s.log.Debug("navigation redirect",
			zap.String("respondent", pos.RespondentID),
			zap.String("question", q.ID),
			zap.String("redirect", d.Redirect))
		return redirect(pos, d.Redirect), nil
	}

	rid := pos.RespondentID
	rows, err := s.answers.ListByRespondent(ctx, rid)
	if err != nil {
		return nil, err
	}
	snap := survey.NewSnapshot(rows)

	skip, err := q.EvalSkip(snap)
	if err != nil {
		return nil, fmt.Errorf("evaluate skip rules: %w", err)
	}
	if err := s.erase(ctx, &pos, skip.Erase); err != nil {
		return nil, err
	}
	if skip.Goto != "" {
		target := s.resolve(pos, skip.Goto)
		pos.Finishing = target == model.StateFinish
		return redirect(pos, target), nil
	}

	pos.Visit(q.ID)
	pos.Current = q.ID
	pos.SetAnswered(q.ID, snap.Answered(q.ID))

	if sub == nil {
		return &FlowResult{Position: pos, View: s.questionView(&pos, q, snap[q.ID], nil)}, nil
	}

	fields, verrs := q.Parse(sub.Values)
	if len(verrs) > 0 {
		return &FlowResult{Position: pos, View: s.questionView(&pos, q, submitted(q, sub), verrs)}, nil
	}

	if err := s.answers.Save(ctx, rid, q.ID, fields); err != nil {
		return nil, err
	}
	snap[q.ID] = fields
	pos.SetAnswered(q.ID, snap.Answered(q.ID))

	next, err := q.EvalNext(snap)
	if err != nil {
		return nil, fmt.Errorf("evaluate next rules: %w", err)
	}
	if err := s.erase(ctx, &pos, next.Erase); err != nil {
		return nil, err
	}
	target := s.resolve(pos, next.Goto)
	pos.Finishing = target == model.StateFinish

	s.log.Debug("answer saved",
		zap.String("respondent", rid),
		zap.String("question", q.ID),
		zap.String("next", target))
	s.emit(EventAnswerSaved, ProgressEvent{RespondentID: rid, QuestionID: q.ID, Next: target})
	return redirect(pos, target), nil
}

// erase drops stored answers and their visited/answered status
func (s *FlowService) erase(ctx context.Context, pos *model.Position, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.answers.Erase(ctx, pos.RespondentID, ids...); err != nil {
		return err
	}
	for _, id := range ids {
		pos.Forget(id)
	}
	return nil
}

func (s *FlowService) resolve(pos model.Position, target string) string {
	if target == model.StateLast {
		return s.nav.LastVisited(pos)
	}
	return target
}

func (s *FlowService) emit(event string, payload ProgressEvent) {
	if s.broadcaster == nil {
		return
	}
	payload.Revision = s.registry.Revision()
	s.broadcaster.BroadcastToMonitors(event, payload)
}

func (s *FlowService) indexView(pos *model.Position) *model.QuestionView {
	actions := []string{model.ActionStart}
	if pos.Started() {
		actions = []string{model.ActionRestart, model.ActionNext}
	}
	view := &model.QuestionView{
		Revision: s.registry.Revision(),
		ID:       model.StateIndex,
		Locale:   pos.Locale,
		Actions:  actions,
		Flash:    pos.Flash,
		Progress: s.progress(*pos, s.registry.IndexMinutes()),
	}
	pos.Flash = ""
	return view
}

func (s *FlowService) questionView(pos *model.Position, q *survey.Question, values model.Fields, errs model.ValidationErrors) *model.QuestionView {
	view := &model.QuestionView{
		Revision: s.registry.Revision(),
		ID:       q.ID,
		Mode:     q.Mode,
		Title:    q.Title,
		Locale:   pos.Locale,
		Fields:   q.FieldViews(values, errs),
		Errors:   errs,
		Actions:  []string{model.ActionNext},
		Flash:    pos.Flash,
		Progress: s.progress(*pos, q.Minutes),
	}
	pos.Flash = ""
	return view
}

// progress lists the visited states in canonical order
func (s *FlowService) progress(pos model.Position, minutes int) model.Progress {
	p := model.Progress{MinutesRemaining: minutes, Items: []model.ProgressItem{}}
	if pos.HasVisited(model.StateIndex) {
		p.Items = append(p.Items, model.ProgressItem{
			ID:       model.StateIndex,
			Current:  pos.Current == model.StateIndex,
			Answered: true,
		})
	}
	for _, id := range s.registry.OrderedIDs() {
		if !pos.HasVisited(id) {
			continue
		}
		p.Items = append(p.Items, model.ProgressItem{
			ID:       id,
			Current:  id == pos.Current,
			Answered: pos.IsAnswered(id),
		})
	}
	return p
}

// submitted keeps the raw form values of q for re-rendering
func submitted(q *survey.Question, sub *model.Submission) model.Fields {
	values := make(model.Fields)
	for _, name := range q.FieldNames() {
		if v, ok := sub.Values[name]; ok {
			values[name] = v
		}
	}
	return values
}

func redirect(pos model.Position, target string) *FlowResult {
	return &FlowResult{Position: pos, Redirect: target}
}
