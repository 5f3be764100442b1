// Package ingest accepts raw public submissions: it validates the answer
// set against the form's current field schemas, enforces response limits,
// persists the response, and emits the submit analytics event.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/astracat/catform/log"
	"github.com/astracat/catform/model"
	"github.com/astracat/catform/validate"
)

var (
	ErrNotFound  = errors.New("form not found or not published")
	ErrClosed    = errors.New("form closed to new responses")
	ErrDuplicate = errors.New("already responded")
)

type Submission struct {
	Answers  []Answer `json:"answers"`
	Metadata Metadata `json:"metadata"`
}

type Answer struct {
	FieldID string `json:"fieldId"`
	Value   any    `json:"value"`
}

type Metadata struct {
	Fingerprint    string `json:"fingerprint"`
	Country        string `json:"country"`
	City           string `json:"city"`
	DeviceType     string `json:"deviceType"`
	Referrer       string `json:"referrer"`
	CompletionTime *int   `json:"completionTime"`
}

// Client carries request-derived metadata the submitter cannot spoof via
// the body.
type Client struct {
	IP        string
	UserAgent string
}

// Hook runs after a submission is accepted, with the new response id.
// Webhook or notification dispatch hangs off here.
type Hook func(formID, responseID string)

// LogHook is the default hook: it only records the accepted submission.
func LogHook(formID, responseID string) {
	log.Infof("form %s: accepted response %s", formID, responseID)
}

type guardCheck struct {
	acquire bool
	key     string
	result  chan<- bool
}

type Ingestor struct {
	db    *sql.DB
	hooks []Hook
	guard chan guardCheck
}

// NewIngestor owns the database handle passed in; the in-flight guard
// goroutine serializes duplicate checks for concurrent submissions that
// share a fingerprint.
func NewIngestor(db *sql.DB, hooks ...Hook) *Ingestor {
	guard := make(chan guardCheck)
	go func() {
		inflight := make(map[string]bool)

		for req := range guard {
			if req.acquire {
				req.result <- inflight[req.key]
				inflight[req.key] = true
			} else {
				delete(inflight, req.key)
			}
		}
	}()

	return &Ingestor{db: db, hooks: hooks, guard: guard}
}

// Submit runs the ingestion pipeline for one raw answer set. A non-nil
// validate.Errors return means the submission was rejected field by field
// and nothing was persisted.
func (in *Ingestor) Submit(ctx context.Context, formID string, sub Submission, client Client) (string, validate.Errors, error) {
	var (
		status        model.FormStatus
		settingsJson  string
		responseCount int
	)
	err := in.db.QueryRowContext(ctx, `
		SELECT status, settings, response_count
		FROM forms
		WHERE id = ?`,
		formID,
	).Scan(&status, &settingsJson, &responseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if status != model.StatusPublished {
		return "", nil, ErrNotFound
	}

	var settings model.FormSettings
	if err := json.Unmarshal([]byte(settingsJson), &settings); err != nil {
		return "", nil, err
	}

	if limits := settings.Limits; limits != nil {
		if limits.CloseAfterResponses != nil && responseCount >= *limits.CloseAfterResponses {
			return "", nil, ErrClosed
		}
		if limits.CloseAfterDate != nil && time.Now().Unix() > *limits.CloseAfterDate {
			return "", nil, ErrClosed
		}

		if limits.OneResponsePerUser && sub.Metadata.Fingerprint != "" {
			key := formID + "|" + sub.Metadata.Fingerprint

			// fend off concurrent submissions with the same fingerprint
			busy := make(chan bool)
			in.guard <- guardCheck{true, key, busy}
			if <-busy {
				return "", nil, ErrDuplicate
			}
			defer func() { in.guard <- guardCheck{false, key, nil} }()

			var seen bool
			err = in.db.QueryRowContext(ctx, `
				SELECT 1 FROM responses
				WHERE form_id = ?
					AND user_fingerprint = ?
					AND completed = 1`,
				formID,
				sub.Metadata.Fingerprint,
			).Scan(&seen)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return "", nil, err
			}
			if seen {
				return "", nil, ErrDuplicate
			}
		}
	}

	fields, err := in.formFields(ctx, formID)
	if err != nil {
		return "", nil, err
	}

	validator, err := validate.Build(fields)
	if err != nil {
		return "", nil, err
	}

	answers := make(map[string]any, len(sub.Answers))
	for _, a := range sub.Answers {
		answers[a.FieldID] = a.Value
	}
	if _, errs := validator.Validate(answers); errs != nil {
		return "", errs, nil
	}

	responseID, err := in.persist(ctx, formID, sub, client)
	if err != nil {
		return "", nil, err
	}

	for _, hook := range in.hooks {
		hook(formID, responseID)
	}
	return responseID, nil, nil
}

func (in *Ingestor) formFields(ctx context.Context, formID string) ([]model.FormField, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT id, type, validation
		FROM form_fields
		WHERE form_id = ?
		ORDER BY position`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []model.FormField
	for rows.Next() {
		var (
			f              model.FormField
			validationJson string
		)
		if err := rows.Scan(&f.ID, &f.Type, &validationJson); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(validationJson), &f.Validation); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (in *Ingestor) persist(ctx context.Context, formID string, sub Submission, client Client) (string, error) {
	tx, err := in.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	responseID := model.NewID("resp")

	_, err = tx.ExecContext(ctx, `
		INSERT INTO responses (
			id, form_id, user_fingerprint, ip_address, user_agent,
			country, city, device_type, referrer, completed, completion_time, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		responseID,
		formID,
		nullable(sub.Metadata.Fingerprint),
		nullable(client.IP),
		nullable(client.UserAgent),
		nullable(sub.Metadata.Country),
		nullable(sub.Metadata.City),
		nullable(sub.Metadata.DeviceType),
		nullable(sub.Metadata.Referrer),
		sub.Metadata.CompletionTime,
		now,
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO response_answers (id, response_id, field_id, value, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, a := range sub.Answers {
		// store exactly what was submitted, not the coerced value
		valueJson, err := json.Marshal(a.Value)
		if err != nil {
			return "", err
		}
		_, err = stmt.ExecContext(ctx, model.NewID("ans"), responseID, a.FieldID, string(valueJson), now)
		if err != nil {
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE forms SET response_count = response_count + 1
		WHERE id = ?`,
		formID,
	)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_events (id, form_id, response_id, event_type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		model.NewID("evt"),
		formID,
		responseID,
		model.EventSubmit,
		now,
	)
	if err != nil {
		return "", err
	}

	return responseID, tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
