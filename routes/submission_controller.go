package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/export"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/submission"
)

type submitRequest struct {
	Answers model.Answers `json:"answers"`
}

func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := httpx.Decode(r, nil, &req); err != nil {
			app.Metrics.Submission("invalid")
			httpx.Error(w, r, "request.parse_body", err)
			return
		}

		sub, err := app.RecordSubmission(r.Context(), chi.URLParam(r, "formId"), func(form model.Form) (model.Answers, error) {
			return submission.Build(form, req.Answers)
		})
		switch {
		case errors.Is(err, model.ErrValidation):
			app.Metrics.Submission("invalid")
		case errors.Is(err, model.ErrNotFound):
			app.Metrics.Submission("not_found")
		case err != nil:
			app.Metrics.Submission("error")
		default:
			app.Metrics.Submission("accepted")
		}
		if err != nil {
			httpx.Error(w, r, "db.insert_submission", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, sub)
	}
}

// managedForm loads the form named in the URL and checks that the caller
// may read its submissions. It answers the request itself on failure.
func managedForm(app app.App, w http.ResponseWriter, r *http.Request) (model.Form, bool) {
	form, err := app.GetForm(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		httpx.Error(w, r, "db.get_form", err)
		return form, false
	}
	if !principal(r).CanManage(form.OwnerID) {
		httpx.Error(w, r, "submissions.owner", model.ErrForbidden)
		return form, false
	}
	return form, true
}

func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := managedForm(app, w, r)
		if !ok {
			return
		}

		subs, err := app.ListSubmissions(r.Context(), form.ID)
		if err != nil {
			httpx.Error(w, r, "db.get_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": subs,
		})
	}
}

func ExportCSV(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := managedForm(app, w, r)
		if !ok {
			return
		}

		subs, err := app.ListSubmissions(r.Context(), form.ID)
		if err != nil {
			httpx.Error(w, r, "db.get_submissions", err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(form)+`"`)
		if err := export.WriteCSV(w, form, subs); err != nil {
			// headers are gone already
			log.WithRequest(r).Errorf("export.write_csv: %s", err)
		}
	}
}
