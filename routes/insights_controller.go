package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/astracat/catform/app"
	"github.com/astracat/catform/export"
	"github.com/astracat/catform/httpx"
	"github.com/astracat/catform/log"
	"github.com/astracat/catform/model"
	"github.com/astracat/catform/routes/middlewares"
)

const responsePageSize = 100

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "get_responses", formID)
			return
		}

		responses, err := fetchResponses(r.Context(), app.DB, formID, responsePageSize)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_responses", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}

func GetFormAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		days := 30
		if param := r.URL.Query().Get("days"); param != "" {
			var err error
			days, err = strconv.Atoi(param)
			if err != nil || days < 1 {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "get_analytics.days", "days must be a positive integer")
				return
			}
		}

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "get_analytics", formID)
			return
		}

		overview, err := app.Aggregator.Overview(r.Context(), formID, days)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_analytics", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"analytics": overview,
		})
	}
}

func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		format := r.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "json" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "export.format", "unknown format %q", format)
			return
		}

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.export.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "export", formID)
			return
		}

		fields, err := fetchFormFields(r.Context(), app.DB, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.export.fields", err)
			return
		}
		responses, err := fetchResponses(r.Context(), app.DB, formID, responsePageSize)
		if err != nil {
			httpx.LogInternalError(w, r, "db.export.responses", err)
			return
		}

		rows := export.Flatten(fields, responses)
		filename := fmt.Sprintf("form-%s-responses.%s", formID, format)
		w.Header().Set("content-disposition", `attachment; filename="`+filename+`"`)

		if format == "csv" {
			w.Header().Set("content-type", "text/csv; charset=utf-8")
			w.Write([]byte(export.CSV(rows)))
			return
		}

		body, err := export.JSON(rows)
		if err != nil {
			httpx.LogInternalError(w, r, "export.json", err)
			return
		}
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.Write(body)
	}
}

func fetchResponses(ctx context.Context, db *sql.DB, formID string, limit int) ([]model.ResponseWithAnswers, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, form_id, user_fingerprint, ip_address, user_agent,
			country, city, device_type, referrer, completed, completion_time, created_at
		FROM responses
		WHERE form_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		formID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []model.ResponseWithAnswers{}
	for rows.Next() {
		resp := model.ResponseWithAnswers{Answers: []model.ResponseAnswer{}}
		err = rows.Scan(
			&resp.ID, &resp.FormID, &resp.UserFingerprint, &resp.IPAddress, &resp.UserAgent,
			&resp.Country, &resp.City, &resp.DeviceType, &resp.Referrer, &resp.Completed,
			&resp.CompletionTime, &resp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range responses {
		responses[i].Answers, err = fetchAnswers(ctx, db, responses[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return responses, nil
}

func fetchAnswers(ctx context.Context, db *sql.DB, responseID string) ([]model.ResponseAnswer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, response_id, field_id, value, created_at
		FROM response_answers
		WHERE response_id = ?`,
		responseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.ResponseAnswer{}
	for rows.Next() {
		var (
			a         model.ResponseAnswer
			valueJson string
		)
		err = rows.Scan(&a.ID, &a.ResponseID, &a.FieldID, &valueJson, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(valueJson), &a.Value); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
