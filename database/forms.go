package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/quick-forms/model"
)

type formRow struct {
	ID              string    `db:"id"`
	OwnerID         string    `db:"owner_id"`
	Name            string    `db:"name"`
	Description     string    `db:"description"`
	Version         int       `db:"version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	SubmissionCount int       `db:"submission_count"`
}

func (r formRow) form(questions []model.Question) model.Form {
	if questions == nil {
		questions = []model.Question{}
	}
	return model.Form{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Name:            r.Name,
		Description:     r.Description,
		Questions:       questions,
		Version:         r.Version,
		SubmissionCount: r.SubmissionCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type questionRow struct {
	FormID        string         `db:"form_id"`
	ID            string         `db:"id"`
	Ordinal       int            `db:"ordinal"`
	Label         string         `db:"label"`
	Type          string         `db:"type"`
	Required      bool           `db:"required"`
	Options       string         `db:"options"`
	Placeholder   string         `db:"placeholder"`
	RuleDependsOn sql.NullString `db:"rule_depends_on"`
	RuleOperator  sql.NullString `db:"rule_operator"`
	RuleComparand sql.NullString `db:"rule_comparand"`
}

func (r questionRow) question() (model.Question, error) {
	q := model.Question{
		ID:          r.ID,
		Label:       r.Label,
		Type:        model.QuestionType(r.Type),
		Required:    r.Required,
		Options:     []string{},
		Placeholder: r.Placeholder,
	}
	if r.Options != "" {
		if err := json.Unmarshal([]byte(r.Options), &q.Options); err != nil {
			return q, fmt.Errorf("question %s options: %w", r.ID, err)
		}
	}
	if r.RuleDependsOn.Valid {
		rule := &model.VisibilityRule{
			DependsOn: r.RuleDependsOn.String,
			Operator:  model.Operator(r.RuleOperator.String),
		}
		if r.RuleComparand.Valid {
			var v any
			if err := json.Unmarshal([]byte(r.RuleComparand.String), &v); err != nil {
				return q, fmt.Errorf("question %s comparand: %w", r.ID, err)
			}
			rule.Comparand = model.NormalizeValue(v)
		}
		q.VisibilityRule = rule
	}
	return q, nil
}

func questionArgs(formID string, ordinal int, q model.Question) ([]any, error) {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, err
	}

	var dependsOn, operator, comparand sql.NullString
	if rule := q.VisibilityRule; rule != nil {
		dependsOn = sql.NullString{String: rule.DependsOn, Valid: true}
		operator = sql.NullString{String: string(rule.Operator), Valid: true}
		if rule.Comparand != nil {
			b, err := json.Marshal(rule.Comparand)
			if err != nil {
				return nil, err
			}
			comparand = sql.NullString{String: string(b), Valid: true}
		}
	}

	return []any{
		formID, q.ID, ordinal, q.Label, string(q.Type), q.Required, string(optionsJSON), q.Placeholder,
		dependsOn, operator, comparand,
	}, nil
}

// CreateForm stores a new form with its questions. The questions must
// already be validated.
func (s *Store) CreateForm(ctx context.Context, form model.Form) (model.Form, error) {
	now := s.timestamp()
	form.CreatedAt = now
	form.UpdatedAt = now
	if form.Version == 0 {
		form.Version = 1
	}
	if form.Questions == nil {
		form.Questions = []model.Question{}
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.q.Exec(ctx, tx, "insert-form",
			form.ID, form.OwnerID, form.Name, form.Description, form.Version, form.CreatedAt, form.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert form: %w", mapConstraintError(err))
		}
		return s.insertQuestions(ctx, tx, form.ID, form.Questions)
	})
	if err != nil {
		return model.Form{}, err
	}
	return form, nil
}

// GetForm loads a form and its questions in display order.
func (s *Store) GetForm(ctx context.Context, id string) (model.Form, error) {
	return s.getForm(ctx, s.db, id)
}

func (s *Store) getForm(ctx context.Context, ext sqlx.ExtContext, id string) (model.Form, error) {
	var row formRow
	if err := s.q.Get(ctx, ext, "get-form", &row, id); err != nil {
		return model.Form{}, notFound(err, "form", id)
	}

	var rows []questionRow
	if err := s.q.Select(ctx, ext, "list-questions", &rows, id); err != nil {
		return model.Form{}, fmt.Errorf("list questions: %w", err)
	}

	questions := make([]model.Question, 0, len(rows))
	for _, r := range rows {
		q, err := r.question()
		if err != nil {
			return model.Form{}, err
		}
		questions = append(questions, q)
	}
	return row.form(questions), nil
}

// ListForms returns the forms owned by ownerID, newest first.
func (s *Store) ListForms(ctx context.Context, ownerID string) ([]model.Form, error) {
	var rows []formRow
	if err := s.q.Select(ctx, s.db, "list-forms-by-owner", &rows, ownerID); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}

	var qrows []questionRow
	if err := s.q.Select(ctx, s.db, "list-questions-by-owner", &qrows, ownerID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	byForm := map[string][]model.Question{}
	for _, r := range qrows {
		q, err := r.question()
		if err != nil {
			return nil, err
		}
		byForm[r.FormID] = append(byForm[r.FormID], q)
	}

	forms := make([]model.Form, 0, len(rows))
	for _, r := range rows {
		forms = append(forms, r.form(byForm[r.ID]))
	}
	return forms, nil
}

func (s *Store) CountForms(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := s.q.Get(ctx, s.db, "count-forms-by-owner", &n, ownerID); err != nil {
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return n, nil
}

// UpdateForm loads the form, lets update modify it and writes it back in the
// same transaction. The version is bumped on every successful update.
// Errors returned by update abort the transaction and are returned as is.
func (s *Store) UpdateForm(ctx context.Context, id string, update func(form *model.Form) error) (model.Form, error) {
	var updated model.Form

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		form, err := s.getForm(ctx, tx, id)
		if err != nil {
			return err
		}
		loadedVersion := form.Version

		if err := update(&form); err != nil {
			return err
		}

		form.ID = id
		form.UpdatedAt = s.timestamp()
		res, err := s.q.Exec(ctx, tx, "update-form",
			form.Name, form.Description, form.UpdatedAt, id, loadedVersion)
		if err != nil {
			return fmt.Errorf("update form: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update form: %w", err)
		} else if n == 0 {
			return fmt.Errorf("form %s changed concurrently: %w", id, model.ErrConflict)
		}
		form.Version = loadedVersion + 1

		if _, err := s.q.Exec(ctx, tx, "delete-questions", id); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if err := s.insertQuestions(ctx, tx, id, form.Questions); err != nil {
			return err
		}

		updated = form
		return nil
	})
	if err != nil {
		return model.Form{}, err
	}
	return updated, nil
}

// DeleteForm removes a form together with its questions and submissions.
func (s *Store) DeleteForm(ctx context.Context, id string) error {
	res, err := s.q.Exec(ctx, s.db, "delete-form", id)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("form %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) insertQuestions(ctx context.Context, tx *sqlx.Tx, formID string, questions []model.Question) error {
	for i, q := range questions {
		args, err := questionArgs(formID, i, q)
		if err != nil {
			return fmt.Errorf("encode question %s: %w", q.ID, err)
		}
		if _, err := s.q.Exec(ctx, tx, "insert-question", args...); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, mapConstraintError(err))
		}
	}
	return nil
}
