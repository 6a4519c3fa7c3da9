package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// NewForm returns an empty form owned by ownerID.
func NewForm(name, description, ownerID string) (Form, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Form{}, &ValidationError{
			Msg:    "form name is required",
			Fields: map[string]string{"name": "required"},
		}
	}
	return Form{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Questions:   []Question{},
		Version:     1,
	}, nil
}

// Normalize returns q in canonical form: trimmed label, canonical type,
// options only on choice types, a generated id when missing, and no rule
// when the rule has no target.
func (q Question) Normalize() Question {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Label = strings.TrimSpace(q.Label)
	q.Type = ParseQuestionType(string(q.Type))

	if q.Type.IsChoice() {
		opts := make([]string, 0, len(q.Options))
		opts = append(opts, q.Options...)
		q.Options = opts
	} else {
		q.Options = []string{}
	}

	if q.VisibilityRule != nil {
		rule := *q.VisibilityRule
		rule.DependsOn = strings.TrimSpace(rule.DependsOn)
		if rule.DependsOn == "" {
			q.VisibilityRule = nil
		} else {
			rule.Operator = ParseOperator(string(rule.Operator))
			q.VisibilityRule = &rule
		}
	}
	return q
}

// ValidateQuestions normalizes every question and checks the list as a
// whole. Nothing is returned unless every question is valid.
func ValidateQuestions(questions []Question) ([]Question, error) {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.Normalize()
	}

	var errs *multierror.Error
	fields := map[string]string{}
	fail := func(i int, q Question, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		errs = multierror.Append(errs, fmt.Errorf("question %d: %s", i+1, msg))
		if _, seen := fields[q.ID]; !seen {
			fields[q.ID] = msg
		}
	}

	ids := make(map[string]int, len(out))
	for i, q := range out {
		if prev, dup := ids[q.ID]; dup {
			fail(i, q, "duplicate id %q (already used by question %d)", q.ID, prev+1)
			continue
		}
		ids[q.ID] = i
	}

	for i, q := range out {
		if !q.Type.Valid() {
			fail(i, q, "unknown type %q", q.Type)
		}
		if q.Label == "" {
			fail(i, q, "label is required")
		}
		rule := q.VisibilityRule
		if rule == nil {
			continue
		}
		if !rule.Operator.Valid() {
			fail(i, q, "unknown operator %q", rule.Operator)
		}
		if rule.DependsOn == q.ID {
			fail(i, q, "visibility rule cannot depend on the question itself")
		} else if _, ok := ids[rule.DependsOn]; !ok {
			fail(i, q, "visibility rule depends on unknown question %q", rule.DependsOn)
		}
	}

	if errs.ErrorOrNil() != nil {
		errs.ErrorFormat = joinErrors
		return nil, &ValidationError{Msg: errs.Error(), Fields: fields}
	}
	return out, nil
}

// AppendQuestion validates q against the questions already in the form and
// returns the extended list.
func AppendQuestion(existing []Question, q Question) ([]Question, error) {
	list := make([]Question, 0, len(existing)+1)
	list = append(list, existing...)
	list = append(list, q)
	return ValidateQuestions(list)
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
