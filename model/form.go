package model

type FormStatus string

const (
	StatusDraft     FormStatus = "draft"
	StatusPublished FormStatus = "published"
	StatusArchived  FormStatus = "archived"
)

func (s FormStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

type Form struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Title         string       `json:"title"`
	Description   *string      `json:"description"`
	Settings      FormSettings `json:"settings"`
	Status        FormStatus   `json:"status"`
	ViewCount     int          `json:"view_count"`
	ResponseCount int          `json:"response_count"`
	CreatedAt     int64        `json:"created_at"`
	UpdatedAt     int64        `json:"updated_at"`
	PublishedAt   *int64       `json:"published_at"`
}

type FormWithFields struct {
	Form
	Fields []FormField `json:"fields"`
}

// FormSettings is a sparse config blob: every recognized option is
// enumerated here, unknown keys are dropped on decode.
type FormSettings struct {
	Theme         *ThemeSettings        `json:"theme,omitempty"`
	Captcha       *CaptchaSettings      `json:"captcha,omitempty"`
	Limits        *LimitSettings        `json:"limits,omitempty"`
	Notifications *NotificationSettings `json:"notifications,omitempty"`
	Redirect      *RedirectSettings     `json:"redirect,omitempty"`
}

type ThemeSettings struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	AccentColor     string `json:"accentColor,omitempty"`
	Font            string `json:"font,omitempty"`
}

type CaptchaSettings struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
}

type LimitSettings struct {
	OneResponsePerUser  bool   `json:"oneResponsePerUser"`
	CloseAfterResponses *int   `json:"closeAfterResponses,omitempty"`
	CloseAfterDate      *int64 `json:"closeAfterDate,omitempty"`
}

type NotificationSettings struct {
	Email    string `json:"email,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

type RedirectSettings struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}
