// Package export flattens collected responses into tabular output keyed
// by field label.
//
// The CSV dialect is deliberately not RFC 4180: every cell is
// independently JSON-stringified and cells are joined with plain commas.
// Consumers parse individual cells with a JSON parser. Falsy values
// (null, false, zero, empty string) serialize as the literal `""`.
package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/astracat/catform/model"
)

// Row is one exported response: ordered column keys plus their values.
// Answer columns are keyed by the field's *current* label, so renaming a
// field after responses exist changes historical export headers.
type Row struct {
	keys   []string
	values map[string]any
}

func (r *Row) set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Flatten produces one row per response: the fixed columns id,
// created_at, completed, device_type, country, then one column per
// answered field in answer order. Answers whose field no longer exists
// are dropped.
func Flatten(fields []model.FormField, responses []model.ResponseWithAnswers) []Row {
	labels := make(map[string]string, len(fields))
	for _, f := range fields {
		labels[f.ID] = f.Label
	}

	rows := make([]Row, 0, len(responses))
	for _, resp := range responses {
		row := Row{values: map[string]any{}}
		row.set("id", resp.ID)
		row.set("created_at", isoTime(resp.CreatedAt))
		row.set("completed", resp.Completed)
		row.set("device_type", deref(resp.DeviceType))
		row.set("country", deref(resp.Country))

		for _, a := range resp.Answers {
			if label, ok := labels[a.FieldID]; ok {
				row.set(label, a.Value)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// CSV renders the rows with the first row's keys as header line. Rows
// missing a column emit `""`; columns appearing only in later rows are
// dropped.
func CSV(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	headers := rows[0].keys
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(headers, ","))

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			value := row.values[h]
			if falsy(value) {
				value = ""
			}
			cells[i] = stringify(value)
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

// JSON renders the rows as a 2-space-indented array of objects, keys in
// column order. Unlike CSV, every row keeps its own columns and values
// are not coerced.
func JSON(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for j, key := range row.keys {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString("\n    ")
			buf.WriteString(stringify(key))
			buf.WriteString(": ")
			value, err := marshalIndented(row.values[key])
			if err != nil {
				return nil, err
			}
			buf.Write(value)
		}
		buf.WriteString("\n  }")
	}
	if len(rows) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// stringify is JSON encoding without HTML escaping or a trailing newline.
func stringify(value any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func marshalIndented(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("    ", "  ")
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func falsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case bool:
		return !v
	case string:
		return v == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	}
	return false
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}
