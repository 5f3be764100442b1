// Package validate compiles stored field schemas into a runtime validator
// for public form submissions.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/astracat/catform/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError is one validation failure, addressable by field id.
type FieldError struct {
	FieldID string `json:"fieldId"`
	Message string `json:"message"`
}

type Errors []FieldError

// check inspects a non-empty answer value and returns the normalized
// value, or a failure message.
type check func(value any) (any, string)

type rule struct {
	fieldID  string
	required bool
	check    check
}

type Validator struct {
	rules []rule
}

// Build compiles an ordered field schema list into a single composite
// validator. The only build-time failure is a stored regex pattern that
// does not compile.
func Build(fields []model.FormField) (*Validator, error) {
	v := &Validator{rules: make([]rule, 0, len(fields))}
	for _, f := range fields {
		c, err := checkFor(f)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.ID, err)
		}
		v.rules = append(v.rules, rule{
			fieldID:  f.ID,
			required: f.Validation.Required,
			check:    c,
		})
	}
	return v, nil
}

// Validate checks a submitted answer set (field id -> raw value) against
// all field rules in one pass. On success the normalized answer set is
// returned; on failure, one message per offending field.
//
// An empty or missing value bypasses all checks unless the field is
// required. Fields are validated independently: conditional display rules
// are never consulted here, so a conditionally hidden required field is
// still required.
func (v *Validator) Validate(answers map[string]any) (map[string]any, Errors) {
	normalized := make(map[string]any, len(answers))
	var errs Errors

	for _, r := range v.rules {
		value, ok := answers[r.fieldID]
		if !ok || isEmpty(value) {
			if r.required {
				errs = append(errs, FieldError{r.fieldID, "missing required field"})
			}
			continue
		}

		norm, msg := r.check(value)
		if msg != "" {
			errs = append(errs, FieldError{r.fieldID, msg})
			continue
		}
		normalized[r.fieldID] = norm
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return normalized, nil
}

func checkFor(f model.FormField) (check, error) {
	switch f.Type {
	case model.FieldEmail:
		return checkEmail, nil

	case model.FieldNumber:
		return checkNumber(f.Validation), nil

	case model.FieldCheckbox:
		return checkStringList, nil

	case model.FieldFile:
		// file values are opaque to the server
		return func(value any) (any, string) { return value, "" }, nil

	default:
		return checkString(f.Validation)
	}
}

func checkEmail(value any) (any, string) {
	s, ok := value.(string)
	if !ok {
		return nil, "must be a string"
	}
	if !emailPattern.MatchString(s) {
		return nil, "invalid email format"
	}
	return s, ""
}

func checkNumber(v model.FieldValidation) check {
	return func(value any) (any, string) {
		n, ok := coerceNumber(value)
		if !ok {
			return nil, "must be a number"
		}
		if v.Min != nil && n < *v.Min {
			return nil, fmt.Sprintf("must be at least %v", *v.Min)
		}
		if v.Max != nil && n > *v.Max {
			return nil, fmt.Sprintf("must be at most %v", *v.Max)
		}
		return n, ""
	}
}

func coerceNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func checkStringList(value any) (any, string) {
	switch list := value.(type) {
	case []string:
		return list, ""
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, "must be a list of strings"
			}
			out[i] = s
		}
		return out, ""
	}
	return nil, "must be a list of strings"
}

func checkString(v model.FieldValidation) (check, error) {
	var pattern *regexp.Regexp
	if v.Pattern != "" {
		var err error
		pattern, err = regexp.Compile(v.Pattern)
		if err != nil {
			return nil, err
		}
	}

	return func(value any) (any, string) {
		s, ok := value.(string)
		if !ok {
			return nil, "must be a string"
		}
		length := len([]rune(s))
		if v.MinLength != nil && length < *v.MinLength {
			return nil, fmt.Sprintf("must be at least %d characters", *v.MinLength)
		}
		if v.MaxLength != nil && length > *v.MaxLength {
			return nil, fmt.Sprintf("must be at most %d characters", *v.MaxLength)
		}
		if pattern != nil && !pattern.MatchString(s) {
			return nil, "invalid format"
		}
		return s, ""
	}, nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}
