package model

import (
	"strings"
	"time"
)

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
	TypeNumber   QuestionType = "number"
	TypeSelect   QuestionType = "select"
	TypeRadio    QuestionType = "radio"
	TypeCheckbox QuestionType = "checkbox"
	TypeDate     QuestionType = "date"
	TypeEmail    QuestionType = "email"

	// legacy builder name for TypeSelect
	typeDropdown QuestionType = "dropdown"
)

var questionTypes = map[QuestionType]bool{
	TypeText:     false,
	TypeTextarea: false,
	TypeNumber:   false,
	TypeSelect:   true,
	TypeRadio:    true,
	TypeCheckbox: true,
	TypeDate:     false,
	TypeEmail:    false,
}

// ParseQuestionType accepts both builder vocabularies and returns the canonical type.
// Unknown names are returned unchanged so that validation can report them.
func ParseQuestionType(s string) QuestionType {
	t := QuestionType(strings.ToLower(strings.TrimSpace(s)))
	if t == typeDropdown {
		return TypeSelect
	}
	return t
}

func (t QuestionType) Valid() bool {
	_, ok := questionTypes[t]
	return ok
}

// IsChoice reports whether answers are picked from Options.
func (t QuestionType) IsChoice() bool {
	return questionTypes[t]
}

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpContains    Operator = "contains"
)

var operators = map[string]Operator{
	"equals":          OpEquals,
	"notequals":       OpNotEquals,
	"greaterthan":     OpGreaterThan,
	"lessthan":        OpLessThan,
	"contains":        OpContains,
	"is equal to":     OpEquals,
	"is not equal to": OpNotEquals,
}

// ParseOperator maps current and legacy operator labels to an Operator.
// An empty label defaults to OpEquals, the builder's default.
func ParseOperator(s string) Operator {
	s = strings.TrimSpace(s)
	if s == "" {
		return OpEquals
	}
	if op, ok := operators[strings.ToLower(s)]; ok {
		return op
	}
	return Operator(s)
}

func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains:
		return true
	}
	return false
}

type VisibilityRule struct {
	DependsOn string   `json:"dependsOn"`
	Operator  Operator `json:"operator"`
	Comparand any      `json:"comparand"`
}

type Question struct {
	ID             string          `json:"id"`
	Label          string          `json:"label"`
	Type           QuestionType    `json:"type"`
	Required       bool            `json:"required"`
	Options        []string        `json:"options"`
	Placeholder    string          `json:"placeholder,omitempty"`
	VisibilityRule *VisibilityRule `json:"visibilityRule"`
}

type Form struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Questions       []Question `json:"questions"`
	Version         int        `json:"version"`
	SubmissionCount int        `json:"submissionCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Question returns the question with the given id.
func (f Form) Question(id string) (Question, bool) {
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answers maps question ids to a scalar value or, for multi-valued
// questions, a []string.
type Answers map[string]any

type Submission struct {
	ID          string    `json:"id"`
	FormID      string    `json:"formId"`
	Answers     Answers   `json:"answers"`
	SubmittedAt time.Time `json:"submittedAt"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
