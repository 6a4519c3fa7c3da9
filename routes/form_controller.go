package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/visibility"
)

type createFormRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions"`
}

// Fields left out of the body keep their stored value.
type updateFormRequest struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Questions   *[]model.Question `json:"questions"`
	Version     int               `json:"version"`
}

type visibilityRequest struct {
	Answers model.Answers `json:"answers"`
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createFormRequest
		if err := httpx.Decode(r, nil, &req); err != nil {
			httpx.Error(w, r, "request.parse_body", err)
			return
		}

		form, err := model.NewForm(req.Name, req.Description, principal(r).UserID)
		if err != nil {
			httpx.Error(w, r, "form.create", err)
			return
		}
		form.Questions, err = model.ValidateQuestions(req.Questions)
		if err != nil {
			httpx.Error(w, r, "form.create.questions", err)
			return
		}

		form, err = app.CreateForm(r.Context(), form)
		if err != nil {
			httpx.Error(w, r, "db.insert_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.ListForms(r.Context(), principal(r).UserID)
		if err != nil {
			httpx.Error(w, r, "db.get_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func CountForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := app.CountForms(r.Context(), principal(r).UserID)
		if err != nil {
			httpx.Error(w, r, "db.count_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"count": n,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := app.GetForm(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.Error(w, r, "db.get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateFormRequest
		if err := httpx.Decode(r, nil, &req); err != nil {
			httpx.Error(w, r, "request.parse_body", err)
			return
		}
		caller := principal(r)

		form, err := app.UpdateForm(r.Context(), chi.URLParam(r, "id"), func(form *model.Form) error {
			if !caller.CanManage(form.OwnerID) {
				return model.ErrForbidden
			}
			// optimistic lock, only when the client sent the version it edited
			if req.Version != 0 && req.Version != form.Version {
				return fmt.Errorf("form is at version %d, not %d: %w", form.Version, req.Version, model.ErrConflict)
			}

			if req.Name != nil {
				name := strings.TrimSpace(*req.Name)
				if name == "" {
					return &model.ValidationError{
						Msg:    "form name is required",
						Fields: map[string]string{"name": "required"},
					}
				}
				form.Name = name
			}
			if req.Description != nil {
				form.Description = strings.TrimSpace(*req.Description)
			}
			if req.Questions != nil {
				questions, err := model.ValidateQuestions(*req.Questions)
				if err != nil {
					return err
				}
				form.Questions = questions
			}
			return nil
		})
		if errors.Is(err, model.ErrConflict) {
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "db.update_form.conflict", "%s", err)
			return
		}
		if err != nil {
			httpx.Error(w, r, "db.update_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		form, err := app.GetForm(r.Context(), formID)
		if err != nil {
			httpx.Error(w, r, "db.get_form", err)
			return
		}
		if !principal(r).CanManage(form.OwnerID) {
			httpx.Error(w, r, "delete_form.owner", model.ErrForbidden)
			return
		}

		if err := app.DeleteForm(r.Context(), formID); err != nil {
			httpx.Error(w, r, "db.delete_form", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func AddQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var question model.Question
		if err := httpx.Decode(r, nil, &question); err != nil {
			httpx.Error(w, r, "request.parse_body", err)
			return
		}
		caller := principal(r)

		form, err := app.UpdateForm(r.Context(), chi.URLParam(r, "id"), func(form *model.Form) error {
			if !caller.CanManage(form.OwnerID) {
				return model.ErrForbidden
			}
			questions, err := model.AppendQuestion(form.Questions, question)
			if err != nil {
				return err
			}
			form.Questions = questions
			return nil
		})
		if err != nil {
			httpx.Error(w, r, "db.add_question", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

// EvaluateVisibility answers the ids of the questions shown for the posted
// answers, in form order.
func EvaluateVisibility(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req visibilityRequest
		if err := httpx.Decode(r, nil, &req); err != nil {
			httpx.Error(w, r, "request.parse_body", err)
			return
		}

		form, err := app.GetForm(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.Error(w, r, "db.get_form", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"visible": visibility.VisibleIDs(form, visibility.NewSnapshot(req.Answers)),
		})
	}
}
