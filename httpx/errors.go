package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
)

// ErrorResponse is the body of every error answered by the API.
type ErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorResponse) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// Will map err to an HTTP status by the model error taxonomy and send it.
// Errors outside of the taxonomy are logged under code and answered with a 500.
func Error(w http.ResponseWriter, r *http.Request, code string, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Debugf("%s: %s", code, err)
		writeError(w, r, http.StatusBadRequest, ErrorResponse{Message: verr.Msg, Fields: verr.Fields})
	case errors.Is(err, model.ErrValidation):
		LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "%s", err)
	case errors.Is(err, model.ErrNotFound):
		LogNotFound(w, r, code, err)
	case errors.Is(err, model.ErrUnauthorized):
		LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, code)
	case errors.Is(err, model.ErrForbidden):
		LogStatus(w, r, http.StatusForbidden, log.DebugLevel, code)
	case errors.Is(err, model.ErrConflict):
		LogStatus(w, r, http.StatusConflict, log.DebugLevel, code)
	default:
		LogInternalError(w, r, code, err)
	}
}

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.WithRequest(r).Errorf("%s: %s", code, err)
	writeError(w, r, http.StatusInternalServerError, ErrorResponse{
		Message: http.StatusText(http.StatusInternalServerError),
	})
}

// Will log a debug message, and send an HTTP response with status 404 and default text
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	writeError(w, r, http.StatusNotFound, ErrorResponse{Message: http.StatusText(http.StatusNotFound)})
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	writeError(w, r, status, ErrorResponse{Message: http.StatusText(status)})
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Logf(level, "%s: %s", code, errMsg)
	writeError(w, r, status, ErrorResponse{Message: errMsg})
}
