package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"provsurvey/internal/model"
	"provsurvey/internal/service"
	"provsurvey/internal/survey"
	"provsurvey/internal/transport/rest/middleware"
)

// SurveyHandler serves the respondent pages
type SurveyHandler struct {
	flow          *service.FlowService
	sessions      *middleware.SessionMiddleware
	locales       []string // default first, matcher index order
	defaultLocale string
	matcher       language.Matcher
	log           *zap.Logger
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(flow *service.FlowService, sessions *middleware.SessionMiddleware, locales []string, defaultLocale string, log *zap.Logger) *SurveyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	ordered := []string{defaultLocale}
	for _, l := range locales {
		if l != defaultLocale {
			ordered = append(ordered, l)
		}
	}
	tags := make([]language.Tag, 0, len(ordered))
	for _, l := range ordered {
		tags = append(tags, localeTag(l))
	}
	return &SurveyHandler{
		flow:          flow,
		sessions:      sessions,
		locales:       ordered,
		defaultLocale: defaultLocale,
		matcher:       language.NewMatcher(tags),
		log:           log,
	}
}

// localeTag maps a URL locale such as "ptbr" to its BCP 47 tag
func localeTag(locale string) language.Tag {
	if len(locale) == 4 {
		if tag, err := language.Parse(locale[:2] + "-" + locale[2:]); err == nil {
			return tag
		}
	}
	if tag, err := language.Parse(locale); err == nil {
		return tag
	}
	return language.Und
}

// Root handles GET / by redirecting to the start page in the preferred locale
func (h *SurveyHandler) Root(w http.ResponseWriter, r *http.Request) {
	_, idx := language.MatchStrings(h.matcher, r.Header.Get("Accept-Language"))
	locale := h.defaultLocale
	if idx >= 0 && idx < len(h.locales) {
		locale = h.locales[idx]
	}
	http.Redirect(w, r, pagePath(locale, model.StateIndex), http.StatusFound)
}

// Page handles GET/POST /{locale}/ and /{locale}/{question}/
func (h *SurveyHandler) Page(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	locale := vars["locale"]
	if !slices.Contains(h.locales, locale) {
		locale = h.defaultLocale
	}
	questionID := vars["question"]
	if questionID == "" {
		questionID = model.StateIndex
	}

	sess := middleware.GetSession(r.Context())
	if sess == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	req := service.FlowRequest{Locale: locale, QuestionID: questionID}
	if r.Method == http.MethodPost {
		sub, err := parseSubmission(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Submission = sub
	}

	res, err := h.flow.Transition(r.Context(), sess.Position, req)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	sess.Position = res.Position
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	if res.Redirect != "" {
		code := http.StatusFound
		if r.Method == http.MethodPost {
			code = http.StatusSeeOther
		}
		http.Redirect(w, r, pagePath(locale, res.Redirect), code)
		return
	}
	writeJSON(w, http.StatusOK, res.View)
}

type submissionBody struct {
	Action string            `json:"action"`
	Values map[string]string `json:"values"`
}

// parseSubmission reads a urlencoded form or a JSON body. The submit control
// carries the action; every other non-reserved key is a field value.
func parseSubmission(r *http.Request) (*model.Submission, error) {
	sub := &model.Submission{Values: make(map[string]string)}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body submissionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		sub.Action = body.Action
		for k, v := range body.Values {
			if !slices.Contains(model.ReservedFormKeys, k) {
				sub.Values[k] = v
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		sub.Action = r.PostForm.Get(model.MarkerField)
		for k, v := range r.PostForm {
			if len(v) > 0 && !slices.Contains(model.ReservedFormKeys, k) {
				sub.Values[k] = v[0]
			}
		}
	}

	sub.Action = strings.ToLower(strings.TrimSpace(sub.Action))
	if sub.Action == "" {
		sub.Action = model.ActionNext
	}
	return sub, nil
}

func pagePath(locale, state string) string {
	return "/" + locale + "/" + state + "/"
}

type surveyMetadata struct {
	Revision      string             `json:"revision"`
	First         string             `json:"first"`
	IndexMinutes  int                `json:"indexMinutes"`
	Locales       []string           `json:"locales"`
	DefaultLocale string             `json:"defaultLocale"`
	Questions     []*survey.Question `json:"questions"`
}

// Metadata handles GET /v1/survey
func (h *SurveyHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	reg := h.flow.Registry()
	writeJSON(w, http.StatusOK, surveyMetadata{
		Revision:      reg.Revision(),
		First:         reg.First(),
		IndexMinutes:  reg.IndexMinutes(),
		Locales:       h.locales,
		DefaultLocale: h.defaultLocale,
		Questions:     reg.Questions(),
	})
}
