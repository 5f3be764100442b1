package routes

import (
	"context"
	"database/sql"
	"encoding/json"
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

func ListFields(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_fields.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "get_fields", formID)
			return
		}

		fields, err := fetchFormFields(r.Context(), app.DB, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_fields", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"fields": fields,
		})
	}
}

func CreateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")

		var body struct {
			Type        model.FieldType       `json:"type"`
			Label       string                `json:"label"`
			Description *string               `json:"description"`
			Placeholder *string               `json:"placeholder"`
			Options     []string              `json:"options"`
			Validation  model.FieldValidation `json:"validation"`
			Position    int                   `json:"position"`
			Settings    model.FieldSettings   `json:"settings"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if !body.Type.Valid() {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "create_field.type", "unknown field type %q", body.Type)
			return
		}
		if strings.TrimSpace(body.Label) == "" {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "create_field.label", "label is required")
			return
		}

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_field.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "create_field", formID)
			return
		}

		var optionsJson any
		if body.Options != nil {
			raw, err := json.Marshal(body.Options)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_field.options", err)
				return
			}
			optionsJson = string(raw)
		}
		validationJson, err := json.Marshal(body.Validation)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_field.validation", err)
			return
		}
		settingsJson, err := json.Marshal(body.Settings)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_field.settings", err)
			return
		}

		fieldID := model.NewID("field")
		_, err = app.ExecContext(r.Context(), `
			INSERT INTO form_fields (id, form_id, type, label, description, placeholder, options, validation, position, settings, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fieldID,
			formID,
			body.Type,
			body.Label,
			body.Description,
			body.Placeholder,
			optionsJson,
			string(validationJson),
			body.Position,
			string(settingsJson),
			time.Now().Unix(),
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_field", err)
			return
		}

		field, err := fetchField(r.Context(), app.DB, formID, fieldID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_field.fetch", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"field": field,
		})
	}
}

func UpdateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")
		fieldID := chi.URLParam(r, "fieldId")

		var patch struct {
			Type        *model.FieldType       `json:"type"`
			Label       *string                `json:"label"`
			Description *string                `json:"description"`
			Placeholder *string                `json:"placeholder"`
			Options     *[]string              `json:"options"`
			Validation  *model.FieldValidation `json:"validation"`
			Position    *int                   `json:"position"`
			Settings    *model.FieldSettings   `json:"settings"`
		}
		err := render.DecodeJSON(r.Body, &patch)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "update_field", formID)
			return
		}

		sets := []string{}
		args := []any{}
		if patch.Type != nil {
			if !patch.Type.Valid() {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_field.type", "unknown field type %q", *patch.Type)
				return
			}
			sets = append(sets, "type = ?")
			args = append(args, *patch.Type)
		}
		if patch.Label != nil {
			if strings.TrimSpace(*patch.Label) == "" {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_field.label", "label is required")
				return
			}
			sets = append(sets, "label = ?")
			args = append(args, *patch.Label)
		}
		if patch.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *patch.Description)
		}
		if patch.Placeholder != nil {
			sets = append(sets, "placeholder = ?")
			args = append(args, *patch.Placeholder)
		}
		if patch.Options != nil {
			raw, err := json.Marshal(*patch.Options)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_field.options", err)
				return
			}
			sets = append(sets, "options = ?")
			args = append(args, string(raw))
		}
		if patch.Validation != nil {
			raw, err := json.Marshal(patch.Validation)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_field.validation", err)
				return
			}
			sets = append(sets, "validation = ?")
			args = append(args, string(raw))
		}
		if patch.Position != nil {
			sets = append(sets, "position = ?")
			args = append(args, *patch.Position)
		}
		if patch.Settings != nil {
			raw, err := json.Marshal(patch.Settings)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_field.settings", err)
				return
			}
			sets = append(sets, "settings = ?")
			args = append(args, string(raw))
		}
		if len(sets) == 0 {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "update_field.empty", "no recognized fields to update")
			return
		}
		args = append(args, fieldID, formID)

		res, err := app.ExecContext(r.Context(), `
			UPDATE form_fields SET `+strings.Join(sets, ", ")+`
			WHERE id = ? AND form_id = ?`,
			args...,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_field", fieldID)
			return
		}

		field, err := fetchField(r.Context(), app.DB, formID, fieldID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_field.fetch", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"field": field,
		})
	}
}

func DeleteField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "id")
		fieldID := chi.URLParam(r, "fieldId")

		owned, err := ownsForm(r.Context(), app.DB, formID, middlewares.UserID(r))
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field.owner", err)
			return
		}
		if !owned {
			httpx.LogNotFound(w, r, "delete_field", formID)
			return
		}

		res, err := app.ExecContext(r.Context(), `
			DELETE FROM form_fields
			WHERE id = ? AND form_id = ?`,
			fieldID,
			formID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_field.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_field", fieldID)
			return
		}

		render.JSON(w, r, map[string]any{
			"success": true,
		})
	}
}

func fetchField(ctx context.Context, db *sql.DB, formID, fieldID string) (model.FormField, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, form_id, type, label, description, placeholder, options, validation, position, settings, created_at
		FROM form_fields
		WHERE id = ? AND form_id = ?`,
		fieldID,
		formID,
	)
	return scanField(row)
}

func fetchFormFields(ctx context.Context, db *sql.DB, formID string) ([]model.FormField, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, form_id, type, label, description, placeholder, options, validation, position, settings, created_at
		FROM form_fields
		WHERE form_id = ?
		ORDER BY position`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []model.FormField{}
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, rows.Err()
}

func scanField(row scannable) (f model.FormField, err error) {
	var (
		optionsJson    sql.NullString
		validationJson string
		settingsJson   string
	)
	err = row.Scan(
		&f.ID, &f.FormID, &f.Type, &f.Label, &f.Description, &f.Placeholder,
		&optionsJson, &validationJson, &f.Position, &settingsJson, &f.CreatedAt,
	)
	if err != nil {
		return
	}

	if optionsJson.Valid {
		if err = json.Unmarshal([]byte(optionsJson.String), &f.Options); err != nil {
			return
		}
	}
	if err = json.Unmarshal([]byte(validationJson), &f.Validation); err != nil {
		return
	}
	err = json.Unmarshal([]byte(settingsJson), &f.Settings)
	return
}
