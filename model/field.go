package model

type FieldType string

const (
	FieldText        FieldType = "text"
	FieldEmail       FieldType = "email"
	FieldNumber      FieldType = "number"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldCheckbox    FieldType = "checkbox"
	FieldRadio       FieldType = "radio"
	FieldFile        FieldType = "file"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldDatetime    FieldType = "datetime"
	FieldSlider      FieldType = "slider"
	FieldRating      FieldType = "rating"
	FieldMatrix      FieldType = "matrix"
	FieldGeolocation FieldType = "geolocation"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldEmail, FieldNumber, FieldTextarea, FieldSelect,
		FieldCheckbox, FieldRadio, FieldFile, FieldDate, FieldTime,
		FieldDatetime, FieldSlider, FieldRating, FieldMatrix, FieldGeolocation:
		return true
	}
	return false
}

type FormField struct {
	ID          string          `json:"id"`
	FormID      string          `json:"form_id"`
	Type        FieldType       `json:"type"`
	Label       string          `json:"label"`
	Description *string         `json:"description"`
	Placeholder *string         `json:"placeholder"`
	Options     []string        `json:"options"`
	Validation  FieldValidation `json:"validation"`
	Position    int             `json:"position"`
	Settings    FieldSettings   `json:"settings"`
	CreatedAt   int64           `json:"created_at"`
}

// FieldValidation is sparse: absent keys mean "no constraint".
type FieldValidation struct {
	Required  bool     `json:"required,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

type FieldSettings struct {
	// Conditional display is advisory to the renderer only: a hidden
	// required field is still required at submit time.
	Conditional *ConditionalRule `json:"conditional,omitempty"`
	Score       *float64         `json:"score,omitempty"`
}

type ConditionalRule struct {
	FieldID  string `json:"fieldId"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}
