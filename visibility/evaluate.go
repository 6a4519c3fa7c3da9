// Package visibility decides which questions of a form are shown for a
// given set of answers.
package visibility

import (
	"strings"

	"github.com/mbolis/quick-forms/model"
)

// Snapshot is an immutable view of the answers entered so far.
type Snapshot struct {
	answers model.Answers
}

// NewSnapshot copies answers into a new Snapshot.
func NewSnapshot(answers model.Answers) Snapshot {
	cp := make(model.Answers, len(answers))
	for id, v := range answers {
		cp[id] = v
	}
	return Snapshot{answers: cp}
}

// With returns a copy of s where question id holds value.
func (s Snapshot) With(id string, value any) Snapshot {
	next := NewSnapshot(s.answers)
	next.answers[id] = value
	return next
}

// Without returns a copy of s where question id is unanswered.
func (s Snapshot) Without(id string) Snapshot {
	next := NewSnapshot(s.answers)
	delete(next.answers, id)
	return next
}

// Get returns the answer to question id. Blank strings and empty lists
// count as unanswered, so clearing a field hides every question that
// depends on it, notEquals rules included.
func (s Snapshot) Get(id string) (any, bool) {
	v, ok := s.answers[id]
	if !ok || isBlank(v) {
		return nil, false
	}
	return v, true
}

// Answers returns a copy of the snapshot contents.
func (s Snapshot) Answers() model.Answers {
	return NewSnapshot(s.answers).answers
}

// IsVisible evaluates the question's own rule against the snapshot. Only
// the direct dependency is looked at: whether that dependency is itself
// visible is the concern of Visible.
func IsVisible(q model.Question, s Snapshot) bool {
	rule := q.VisibilityRule
	if rule == nil {
		return true
	}
	answer, ok := s.Get(rule.DependsOn)
	if !ok {
		return false
	}
	return Compare(rule.Operator, answer, rule.Comparand)
}

// Visible returns the ids of the visible questions of form.
//
// A question whose dependency is hidden is hidden as well, whatever the
// dependency's stored answer: answers of hidden questions are dropped and
// the rules are evaluated again until nothing changes.
func Visible(form model.Form, s Snapshot) map[string]bool {
	visible := make(map[string]bool, len(form.Questions))
	for _, q := range form.Questions {
		visible[q.ID] = true
	}

	for range len(form.Questions) + 1 {
		changed := false
		for _, q := range form.Questions {
			if !visible[q.ID] {
				continue
			}
			if !IsVisible(q, s) {
				visible[q.ID] = false
				s = s.Without(q.ID)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return visible
}

// VisibleIDs returns the visible question ids in form order.
func VisibleIDs(form model.Form, s Snapshot) []string {
	visible := Visible(form, s)
	ids := make([]string, 0, len(visible))
	for _, q := range form.Questions {
		if visible[q.ID] {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
