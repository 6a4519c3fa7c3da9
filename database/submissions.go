package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mbolis/quick-forms/model"
)

type submissionRow struct {
	ID          string    `db:"id"`
	FormID      string    `db:"form_id"`
	Answers     string    `db:"answers"`
	SubmittedAt time.Time `db:"submitted_at"`
}

func (r submissionRow) submission() (model.Submission, error) {
	s := model.Submission{
		ID:          r.ID,
		FormID:      r.FormID,
		Answers:     model.Answers{},
		SubmittedAt: r.SubmittedAt,
	}
	if err := json.Unmarshal([]byte(r.Answers), &s.Answers); err != nil {
		return s, fmt.Errorf("submission %s answers: %w", r.ID, err)
	}
	return s, nil
}

// RecordSubmission loads the form, turns the raw answers into the stored
// answer set with build and inserts the submission, all in one transaction.
func (s *Store) RecordSubmission(ctx context.Context, formID string, build func(form model.Form) (model.Answers, error)) (model.Submission, error) {
	var sub model.Submission

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		form, err := s.getForm(ctx, tx, formID)
		if err != nil {
			return err
		}

		answers, err := build(form)
		if err != nil {
			return err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("submission id: %w", err)
		}
		answersJSON, err := json.Marshal(answers)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}

		sub = model.Submission{
			ID:          id.String(),
			FormID:      formID,
			Answers:     answers,
			SubmittedAt: s.timestamp(),
		}
		_, err = s.q.Exec(ctx, tx, "insert-submission", sub.ID, sub.FormID, string(answersJSON), sub.SubmittedAt)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns the submissions of a form in the order they were
// recorded.
func (s *Store) ListSubmissions(ctx context.Context, formID string) ([]model.Submission, error) {
	var rows []submissionRow
	if err := s.q.Select(ctx, s.db, "list-submissions", &rows, formID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	subs := make([]model.Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.submission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
