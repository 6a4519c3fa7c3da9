package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// questionWire is the union of the two builder formats:
//
//	{id, label, type, required, options, placeholder, visibilityRule{fieldId|dependsOn, operator, value|comparand}}
//	{_id, questionText, questionType, options, isRequired, conditionalLogic{enabled, dependentQuestion, condition, value}}
type questionWire struct {
	ID               string                `json:"id"`
	LegacyID         string                `json:"_id"`
	Label            string                `json:"label"`
	QuestionText     string                `json:"questionText"`
	Type             string                `json:"type"`
	QuestionType     string                `json:"questionType"`
	Required         *bool                 `json:"required"`
	IsRequired       *bool                 `json:"isRequired"`
	Options          []string              `json:"options"`
	Placeholder      string                `json:"placeholder"`
	VisibilityRule   *visibilityRuleWire   `json:"visibilityRule"`
	ConditionalLogic *conditionalLogicWire `json:"conditionalLogic"`
}

type visibilityRuleWire struct {
	DependsOn string          `json:"dependsOn"`
	FieldID   string          `json:"fieldId"`
	Operator  string          `json:"operator"`
	Comparand json.RawMessage `json:"comparand"`
	Value     json.RawMessage `json:"value"`
}

type conditionalLogicWire struct {
	Enabled           bool            `json:"enabled"`
	DependentQuestion *string         `json:"dependentQuestion"`
	Condition         string          `json:"condition"`
	Value             json.RawMessage `json:"value"`
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*q = Question{
		ID:          firstNonEmpty(w.ID, w.LegacyID),
		Label:       firstNonEmpty(w.Label, w.QuestionText),
		Type:        ParseQuestionType(firstNonEmpty(w.Type, w.QuestionType)),
		Options:     w.Options,
		Placeholder: w.Placeholder,
	}
	switch {
	case w.Required != nil:
		q.Required = *w.Required
	case w.IsRequired != nil:
		q.Required = *w.IsRequired
	}

	switch {
	case w.VisibilityRule != nil:
		comparand, err := decodeLiteral(firstRaw(w.VisibilityRule.Comparand, w.VisibilityRule.Value))
		if err != nil {
			return fmt.Errorf("visibilityRule: %w", err)
		}
		q.VisibilityRule = &VisibilityRule{
			DependsOn: firstNonEmpty(w.VisibilityRule.DependsOn, w.VisibilityRule.FieldID),
			Operator:  ParseOperator(w.VisibilityRule.Operator),
			Comparand: comparand,
		}
	case w.ConditionalLogic != nil && w.ConditionalLogic.Enabled:
		comparand, err := decodeLiteral(w.ConditionalLogic.Value)
		if err != nil {
			return fmt.Errorf("conditionalLogic: %w", err)
		}
		var dependsOn string
		if w.ConditionalLogic.DependentQuestion != nil {
			dependsOn = *w.ConditionalLogic.DependentQuestion
		}
		q.VisibilityRule = &VisibilityRule{
			DependsOn: dependsOn,
			Operator:  ParseOperator(w.ConditionalLogic.Condition),
			Comparand: comparand,
		}
	}

	return nil
}

// UnmarshalJSON accepts an object keyed by question id, or the legacy
// list of {questionId, answer} pairs.
func (a *Answers) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := Answers{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '[':
		var pairs []struct {
			QuestionID string `json:"questionId"`
			Answer     any    `json:"answer"`
		}
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		for _, p := range pairs {
			if p.QuestionID == "" {
				continue
			}
			out[p.QuestionID] = NormalizeValue(p.Answer)
		}
	default:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		for id, v := range m {
			out[id] = NormalizeValue(v)
		}
	}

	*a = out
	return nil
}

// NormalizeValue turns JSON arrays of scalars into []string. Other values
// are returned unchanged.
func NormalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := ScalarString(e)
		if !ok {
			return v
		}
		out = append(out, s)
	}
	return out
}

// ScalarString formats strings, numbers and booleans the way a client would type them.
func ScalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

func decodeLiteral(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return NormalizeValue(v), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(bytes.TrimSpace(v)) > 0 {
			return v
		}
	}
	return nil
}
