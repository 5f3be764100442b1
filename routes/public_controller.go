package routes

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/astracat/catform/app"
	"github.com/astracat/catform/httpx"
	"github.com/astracat/catform/ingest"
	"github.com/astracat/catform/log"
	"github.com/astracat/catform/model"
)

// PublicGetForm serves the form schema to the renderer. A published form
// view bumps view_count; the counter is best-effort, a failed increment
// only logs.
func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		form, err := fetchFormWithFields(r.Context(), app.DB, formID)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_form", formID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		if form.Status == model.StatusPublished {
			_, err = app.ExecContext(r.Context(), `
				UPDATE forms SET view_count = view_count + 1
				WHERE id = ?`,
				formID,
			)
			if err != nil {
				log.Warnf("db.get_form.view_count: %s", err)
			} else {
				form.ViewCount++
			}
		}

		render.JSON(w, r, map[string]any{
			"form": form,
		})
	}
}

func SubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		var sub ingest.Submission
		err := render.DecodeJSON(r.Body, &sub)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		client := ingest.Client{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		}

		responseID, fieldErrs, err := app.Ingestor.Submit(r.Context(), formID, sub, client)
		switch {
		case errors.Is(err, ingest.ErrNotFound):
			httpx.LogNotFound(w, r, "submit_response", formID)
			return
		case errors.Is(err, ingest.ErrClosed):
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "submit_response.closed", "form is closed to new responses")
			return
		case errors.Is(err, ingest.ErrDuplicate):
			httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "submit_response.duplicate", "already responded")
			return
		case err != nil:
			httpx.LogInternalError(w, r, "submit_response", err)
			return
		case fieldErrs != nil:
			httpx.LogValidationFailed(w, r, "submit_response.validate", fieldErrs)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"responseId": responseID,
		})
	}
}

// TrackEvent records client-side funnel events. Submit events only come
// from ingestion.
func TrackEvent(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		var body struct {
			EventType  model.EventType `json:"eventType"`
			ResponseID *string         `json:"responseId"`
			FieldID    *string         `json:"fieldId"`
			Metadata   map[string]any  `json:"metadata"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if !body.EventType.Valid() || body.EventType == model.EventSubmit {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "track_event.type", "unknown event type %q", body.EventType)
			return
		}

		var exists bool
		err = app.QueryRowContext(r.Context(),
			"SELECT 1 FROM forms WHERE id = ?", formID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "track_event", formID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.track_event.form", err)
			return
		}

		var metadataJson any
		if body.Metadata != nil {
			raw, err := json.Marshal(body.Metadata)
			if err != nil {
				httpx.LogInternalError(w, r, "db.track_event.metadata", err)
				return
			}
			metadataJson = string(raw)
		}

		_, err = app.ExecContext(r.Context(), `
			INSERT INTO analytics_events (id, form_id, response_id, event_type, field_id, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			model.NewID("evt"),
			formID,
			body.ResponseID,
			body.EventType,
			body.FieldID,
			metadataJson,
			time.Now().Unix(),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.track_event", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"success": true,
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("x-forwarded-for"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}
