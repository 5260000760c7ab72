package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"

	"go.uber.org/zap"

	"provsurvey/internal/model"
	"provsurvey/internal/repository"
	"provsurvey/internal/survey"
)

// Respondent status column values
const (
	StatusCompleted  = "completed"
	StatusRestarted  = "restarted"
	StatusInProgress = "in_progress"
)

var (
	ErrInvalidReceiver  = errors.New("receiver must be 1-64 characters of letters, digits, '.', '_', '@' or '-'")
	ErrInvalidSeparator = errors.New("separator must be a single printable character")

	receiverPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)
)

// ExportOptions controls the delimited export
type ExportOptions struct {
	Receiver          string // who the export is produced for, recorded in the log
	Raw               bool   // raw keys instead of labels
	Separator         rune
	InternalSeparator string // joins multi-valued answers inside one cell
}

// ExportService writes every collected answer as one row per respondent
type ExportService struct {
	registry *survey.Registry
	answers  repository.AnswerRepository
	log      *zap.Logger
}

func NewExportService(registry *survey.Registry, answers repository.AnswerRepository, log *zap.Logger) *ExportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportService{registry: registry, answers: answers, log: log}
}

// ValidReceiver reports whether receiver is an acceptable export name
func ValidReceiver(receiver string) bool {
	return receiverPattern.MatchString(receiver)
}

// Export writes the header and one row per respondent in first-answer order.
// Columns follow the canonical question order; missing answers are empty.
// It returns the number of respondent rows written.
func (s *ExportService) Export(ctx context.Context, w io.Writer, opts ExportOptions) (int, error) {
	if !ValidReceiver(opts.Receiver) {
		return 0, ErrInvalidReceiver
	}
	if opts.Separator == 0 || opts.Separator == '"' || opts.Separator == '\r' || opts.Separator == '\n' {
		return 0, ErrInvalidSeparator
	}

	rows, err := s.answers.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	var order []string
	byRespondent := make(map[string]survey.Snapshot)
	for _, a := range rows {
		snap, ok := byRespondent[a.RespondentID]
		if !ok {
			snap = make(survey.Snapshot)
			byRespondent[a.RespondentID] = snap
			order = append(order, a.RespondentID)
		}
		fields, ok := snap[a.QuestionID]
		if !ok {
			fields = make(model.Fields)
			snap[a.QuestionID] = fields
		}
		fields[a.Field] = a.Value
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.Separator

	questions := s.registry.Questions()
	header := []string{"respondent", "status"}
	for _, q := range questions {
		header = append(header, q.ID)
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	for _, rid := range order {
		snap := byRespondent[rid]
		record := make([]string, 0, len(header))
		record = append(record, rid, respondentStatus(snap))
		for _, q := range questions {
			record = append(record, q.Format(snap[q.ID], opts.Raw, opts.InternalSeparator))
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	s.log.Info("answers exported",
		zap.String("receiver", opts.Receiver),
		zap.Int("respondents", len(order)),
		zap.Bool("raw", opts.Raw))
	return len(order), nil
}

func respondentStatus(snap survey.Snapshot) string {
	switch snap[model.StateFinish][model.MarkerField] {
	case model.MarkerFinal:
		return StatusCompleted
	case model.MarkerRestart:
		return StatusRestarted
	}
	return StatusInProgress
}
