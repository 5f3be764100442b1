package model

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

type Response struct {
	ID              string  `json:"id"`
	FormID          string  `json:"form_id"`
	UserFingerprint *string `json:"user_fingerprint"`
	IPAddress       *string `json:"ip_address"`
	UserAgent       *string `json:"user_agent"`
	Country         *string `json:"country"`
	City            *string `json:"city"`
	DeviceType      *string `json:"device_type"`
	Referrer        *string `json:"referrer"`
	Completed       bool    `json:"completed"`
	CompletionTime  *int    `json:"completion_time"`
	CreatedAt       int64   `json:"created_at"`
}

type ResponseWithAnswers struct {
	Response
	Answers []ResponseAnswer `json:"answers"`
}

type ResponseAnswer struct {
	ID         string `json:"id"`
	ResponseID string `json:"response_id"`
	FieldID    string `json:"field_id"`
	Value      any    `json:"value"`
	CreatedAt  int64  `json:"created_at"`
}
