package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/astracat/catform/log"
	"github.com/astracat/catform/validate"
)

// Every failure body is {"error": "..."} JSON; internal detail is logged,
// never leaked.

func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]any{"error": http.StatusText(http.StatusInternalServerError)})
}

func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, map[string]any{"error": "not found"})
}

// LogStatus logs an error code at the given level and sends the default
// text for the status.
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": http.StatusText(status)})
}

// LogStatusMsg logs an error code and message at the given level and
// sends the formatted message to the caller.
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": errMsg})
}

// LogValidationFailed sends the field-indexed error list, one message per
// offending field.
func LogValidationFailed(w http.ResponseWriter, r *http.Request, code string, errs validate.Errors) {
	log.Debugf("%s: %d invalid fields", code, len(errs))
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, map[string]any{
		"error":  "validation failed",
		"fields": errs,
	})
}
