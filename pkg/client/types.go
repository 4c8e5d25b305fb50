package client

import "time"

type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Account is a messaging account the AI replies on behalf of.
type Account struct {
	ID        string    `json:"id"`
	Enabled   bool      `json:"enabled"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AIReplySettings is the per-account AI configuration.
type AIReplySettings struct {
	AccountID          string  `json:"account_id,omitempty"`
	AIEnabled          bool    `json:"ai_enabled"`
	ModelName          string  `json:"model_name"`
	APIKey             string  `json:"api_key"`
	BaseURL            string  `json:"base_url"`
	MaxDiscountPercent int     `json:"max_discount_percent"`
	MaxDiscountAmount  float64 `json:"max_discount_amount"`
	MaxBargainRounds   int     `json:"max_bargain_rounds"`
	CustomPrompts      string  `json:"custom_prompts"`
}

type BackupFile struct {
	Filename     string  `json:"filename"`
	Size         int64   `json:"size"`
	SizeMB       float64 `json:"size_mb"`
	ModifiedTime string  `json:"modified_time"`
}

type BackupList struct {
	Backups []BackupFile `json:"backups"`
	Total   int          `json:"total"`
}

// UserSetting is one per-user value. Values are opaque strings.
type UserSetting struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type UserSettings map[string]UserSetting

// LoginInfo is the public view of the login-related toggles.
type LoginInfo struct {
	RegistrationEnabled  bool `json:"registration_enabled"`
	ShowDefaultLoginInfo bool `json:"show_default_login_info"`
	LoginCaptchaEnabled  bool `json:"login_captcha_enabled"`
}
