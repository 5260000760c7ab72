package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"provsurvey/internal/model"
)

type sqlAnswerRepo struct {
	db *sql.DB
}

// NewSQLAnswerRepository creates a store over a database opened with OpenSQL
func NewSQLAnswerRepository(db *sql.DB) AnswerRepository {
	return &sqlAnswerRepo{db: db}
}

func (r *sqlAnswerRepo) Save(ctx context.Context, respondentID, questionID string, fields model.Fields) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewStorageError("save answer", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM answers WHERE uid=$1 AND question=$2`, respondentID, questionID); err != nil {
		return model.NewStorageError("save answer", err)
	}
	now := time.Now().UnixMilli()
	for _, name := range sortedKeys(fields) {
		v := fields[name]
		if v == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (uid,question,field,value,created_at) VALUES ($1,$2,$3,$4,$5)`,
			respondentID, questionID, name, v, now); err != nil {
			return model.NewStorageError("save answer", err)
		}
	}
	return model.NewStorageError("save answer", tx.Commit())
}

func (r *sqlAnswerRepo) Erase(ctx context.Context, respondentID string, questionIDs ...string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(questionIDs)+1)
	args = append(args, respondentID)
	marks := make([]string, 0, len(questionIDs))
	for i, id := range questionIDs {
		args = append(args, id)
		marks = append(marks, "$"+strconv.Itoa(i+2))
	}
	query := `DELETE FROM answers WHERE uid=$1 AND question IN (` + strings.Join(marks, ",") + `)`
	_, err := r.db.ExecContext(ctx, query, args...)
	return model.NewStorageError("erase answers", err)
}

func (r *sqlAnswerRepo) Get(ctx context.Context, respondentID, questionID string) (model.Fields, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT field,value FROM answers WHERE uid=$1 AND question=$2`, respondentID, questionID)
	if err != nil {
		return nil, model.NewStorageError("get answer", err)
	}
	defer rows.Close()

	fields := make(model.Fields)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, model.NewStorageError("get answer", err)
		}
		fields[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("get answer", err)
	}
	return fields, nil
}

func (r *sqlAnswerRepo) ListByRespondent(ctx context.Context, respondentID string) ([]model.Answer, error) {
	return r.list(ctx, "list respondent answers",
		`SELECT uid,question,field,value,created_at FROM answers WHERE uid=$1 ORDER BY created_at,id`, respondentID)
}

func (r *sqlAnswerRepo) ListAll(ctx context.Context) ([]model.Answer, error) {
	return r.list(ctx, "list answers",
		`SELECT uid,question,field,value,created_at FROM answers ORDER BY created_at,id`)
}

func (r *sqlAnswerRepo) list(ctx context.Context, op, query string, args ...any) ([]model.Answer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewStorageError(op, err)
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var (
			a       model.Answer
			created int64
		)
		if err := rows.Scan(&a.RespondentID, &a.QuestionID, &a.Field, &a.Value, &created); err != nil {
			return nil, model.NewStorageError(op, err)
		}
		a.CreatedAt = time.UnixMilli(created).UTC()
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError(op, err)
	}
	return answers, nil
}
