package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"provsurvey/internal/model"
	"provsurvey/internal/service"
)

const maxSteps = 200

var errNoFinish = errors.New("respondent did not reach the finish page")

type simulator struct {
	flow    *service.FlowService
	rng     *rand.Rand
	locales []string
	emails  int
}

func newSimulator(flow *service.FlowService, rng *rand.Rand, locales []string) *simulator {
	if len(locales) == 0 {
		locales = []string{"en"}
	}
	return &simulator{flow: flow, rng: rng, locales: locales}
}

// run takes one new respondent from the start page to the finish page and
// returns its id and the number of pages answered
func (s *simulator) run(ctx context.Context) (string, int, error) {
	locale := s.locales[s.rng.IntN(len(s.locales))]
	pos := model.Position{Locale: locale}
	req := service.FlowRequest{
		Locale:     locale,
		QuestionID: model.StateIndex,
		Submission: &model.Submission{Action: model.ActionStart},
	}

	rid, pages := "", 0
	for step := 0; step < maxSteps; step++ {
		res, err := s.flow.Transition(ctx, pos, req)
		if err != nil {
			return rid, pages, err
		}
		pos = res.Position
		if pos.RespondentID != "" {
			rid = pos.RespondentID
		}

		switch {
		case res.Redirect != "":
			req = service.FlowRequest{Locale: locale, QuestionID: res.Redirect}
		case res.View.ID == model.StateFinish:
			return rid, pages, nil
		case len(res.View.Errors) > 0 && req.Submission != nil && req.QuestionID == res.View.ID:
			return rid, pages, fmt.Errorf("question %s rejected generated answer: %v", res.View.ID, res.View.Errors)
		default:
			pages++
			req = service.FlowRequest{
				Locale:     locale,
				QuestionID: res.View.ID,
				Submission: &model.Submission{Action: model.ActionNext, Values: s.fill(res.View)},
			}
		}
	}
	return rid, pages, errNoFinish
}

// fill produces a valid random submission for view
func (s *simulator) fill(view *model.QuestionView) map[string]string {
	values := make(map[string]string)
	for _, f := range view.Fields {
		switch f.Kind {
		case model.FieldChoice:
			if len(f.Choices) > 0 && s.rng.IntN(10) > 0 {
				values[f.Name] = f.Choices[s.rng.IntN(len(f.Choices))].Value
			}
		case model.FieldBoolean:
			if s.rng.IntN(5) < 2 {
				values[f.Name] = model.CheckedValue
			}
		case model.FieldText:
			if f.Required || s.rng.IntN(4) == 0 {
				values[f.Name] = "simulated answer"
			}
		case model.FieldEmail:
			s.emails++
			values[f.Name] = fmt.Sprintf("respondent%d@example.org", s.emails)
		}
	}
	return values
}
