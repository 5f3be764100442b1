package routes

import (
	"context"
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
	"github.com/astracat/catform/log"
	"github.com/astracat/catform/model"
	"github.com/astracat/catform/routes/middlewares"
)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title       string              `json:"title"`
			Description *string             `json:"description"`
			Settings    *model.FormSettings `json:"settings"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "create_form.title", "title is required")
			return
		}

		settings := model.FormSettings{}
		if body.Settings != nil {
			settings = *body.Settings
		}
		settingsJson, err := json.Marshal(settings)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.settings", err)
			return
		}

		formID := model.NewID("form")
		now := time.Now().Unix()
		_, err = app.ExecContext(r.Context(), `
			INSERT INTO forms (id, user_id, title, description, settings, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			formID,
			middlewares.UserID(r),
			body.Title,
			body.Description,
			string(settingsJson),
			model.StatusDraft,
			now,
			now,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}

		form, err := fetchForm(r.Context(), app.DB, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.fetch", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"form": form,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, user_id, title, description, settings, status,
				view_count, response_count, created_at, updated_at, published_at
			FROM forms
			WHERE user_id = ?
			ORDER BY updated_at DESC`,
			middlewares.UserID(r),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms", err)
			return
		}
		defer rows.Close()

		forms := []model.Form{}
		for rows.Next() {
			form, err := scanForm(rows)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_forms.scan", err)
				return
			}
			forms = append(forms, form)
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		var patch struct {
			Title       *string             `json:"title"`
			Description *string             `json:"description"`
			Settings    *model.FormSettings `json:"settings"`
			Status      *model.FormStatus   `json:"status"`
		}
		err := render.DecodeJSON(r.Body, &patch)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		sets := []string{}
		args := []any{}
		if patch.Title != nil {
			if strings.TrimSpace(*patch.Title) == "" {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_form.title", "title is required")
				return
			}
			sets = append(sets, "title = ?")
			args = append(args, *patch.Title)
		}
		if patch.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *patch.Description)
		}
		if patch.Settings != nil {
			settingsJson, err := json.Marshal(patch.Settings)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_form.settings", err)
				return
			}
			sets = append(sets, "settings = ?")
			args = append(args, string(settingsJson))
		}
		now := time.Now().Unix()
		if patch.Status != nil {
			if !patch.Status.Valid() {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_form.status", "unknown status %q", *patch.Status)
				return
			}
			sets = append(sets, "status = ?")
			args = append(args, *patch.Status)
			if *patch.Status == model.StatusPublished {
				sets = append(sets, "published_at = ?")
				args = append(args, now)
			}
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, now, formID, middlewares.UserID(r))

		res, err := app.ExecContext(r.Context(), `
			UPDATE forms SET `+strings.Join(sets, ", ")+`
			WHERE id = ? AND user_id = ?`,
			args...,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_form", formID)
			return
		}

		form, err := fetchFormWithFields(r.Context(), app.DB, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.fetch", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"form": form,
		})
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "delete_form", formID)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		// cascade is explicit: children first
		for _, del := range []string{
			`DELETE FROM response_answers
				WHERE response_id IN (SELECT id FROM responses WHERE form_id = ?)`,
			`DELETE FROM analytics_events WHERE form_id = ?`,
			`DELETE FROM responses WHERE form_id = ?`,
			`DELETE FROM form_fields WHERE form_id = ?`,
			`DELETE FROM forms WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(r.Context(), del, formID); err != nil {
				httpx.LogInternalError(w, r, "db.delete_form", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
		})
	}
}

func ownsForm(ctx context.Context, db *sql.DB, formID, userID string) (bool, error) {
	var owned bool
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM forms WHERE id = ? AND user_id = ?",
		formID, userID,
	).Scan(&owned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return owned, err
}

func fetchForm(ctx context.Context, db *sql.DB, formID string) (model.Form, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, settings, status,
			view_count, response_count, created_at, updated_at, published_at
		FROM forms
		WHERE id = ?`,
		formID,
	)
	return scanForm(row)
}

func fetchFormWithFields(ctx context.Context, db *sql.DB, formID string) (form model.FormWithFields, err error) {
	form.Form, err = fetchForm(ctx, db, formID)
	if err != nil {
		return
	}
	form.Fields, err = fetchFormFields(ctx, db, formID)
	return
}

type scannable interface {
	Scan(dest ...any) error
}

func scanForm(row scannable) (f model.Form, err error) {
	var settingsJson string
	err = row.Scan(
		&f.ID, &f.UserID, &f.Title, &f.Description, &settingsJson, &f.Status,
		&f.ViewCount, &f.ResponseCount, &f.CreatedAt, &f.UpdatedAt, &f.PublishedAt,
	)
	if err != nil {
		return
	}
	err = json.Unmarshal([]byte(settingsJson), &f.Settings)
	return
}
