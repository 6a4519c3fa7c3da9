// Package export writes form submissions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/mbolis/quick-forms/model"
)

const (
	DateColumn = "Submission Date"
	DateLayout = "2006-01-02"
)

// WriteCSV writes one header row and one row per submission, in the order
// given. Columns are the submission date followed by the form questions in
// form order.
func WriteCSV(w io.Writer, form model.Form, submissions []model.Submission) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(form.Questions)+1)
	header = append(header, DateColumn)
	for _, q := range form.Questions {
		header = append(header, q.Label)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(header))
	for _, s := range submissions {
		row[0] = s.SubmittedAt.UTC().Format(DateLayout)
		for i, q := range form.Questions {
			row[i+1] = Cell(s.Answers[q.ID])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing submission %s: %w", s.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Cell formats one answer. Lists are joined with ", ", missing answers are empty.
func Cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, Cell(e))
		}
		return strings.Join(parts, ", ")
	}
	if s, ok := model.ScalarString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename is the attachment name of the export of form.
func Filename(form model.Form) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(form.Name, "_"), "_")
	if name == "" {
		name = "form"
	}
	return name + "_submissions.csv"
}
