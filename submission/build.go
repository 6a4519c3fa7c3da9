// Package submission turns the raw answers posted by a respondent into the
// answer set that gets stored.
package submission

import (
	"fmt"
	"strings"

	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/visibility"
)

// Build keeps the answers of the visible questions of form and checks that
// every visible required question has been answered. Answers to unknown or
// hidden questions are dropped.
func Build(form model.Form, raw model.Answers) (model.Answers, error) {
	snapshot := visibility.NewSnapshot(raw)
	visible := visibility.Visible(form, snapshot)

	out := model.Answers{}
	missing := map[string]string{}
	var labels []string

	for _, q := range form.Questions {
		if !visible[q.ID] {
			continue
		}
		v, ok := snapshot.Get(q.ID)
		if !ok {
			if q.Required {
				missing[q.ID] = "required"
				labels = append(labels, fmt.Sprintf("%q", q.Label))
			}
			continue
		}
		out[q.ID] = v
	}

	if len(missing) > 0 {
		return nil, &model.ValidationError{
			Msg:    "missing required answers: " + strings.Join(labels, ", "),
			Fields: missing,
		}
	}
	return out, nil
}
