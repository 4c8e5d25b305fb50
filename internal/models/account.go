package models

import "time"

// Account is a messaging account the AI replies for. ID is the external
// account identifier, not a surrogate key.
type Account struct {
	ID        string    `gorm:"primaryKey;size:100" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Enabled   bool      `json:"enabled"`
	Remark    string    `gorm:"size:255" json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// AIReplySetting configures automatic replies for one account.
type AIReplySetting struct {
	AccountID          string    `gorm:"primaryKey;size:100" json:"account_id"`
	AIEnabled          bool      `json:"ai_enabled"`
	ModelName          string    `gorm:"size:100" json:"model_name"`
	APIKey             string    `gorm:"size:500" json:"api_key"`
	BaseURL            string    `gorm:"size:500" json:"base_url"`
	MaxDiscountPercent int       `json:"max_discount_percent"`
	MaxDiscountAmount  float64   `json:"max_discount_amount"`
	MaxBargainRounds   int       `json:"max_bargain_rounds"`
	CustomPrompts      string    `gorm:"type:text" json:"custom_prompts"` // JSON object: classify, price, tech, default
	UpdatedAt          time.Time `json:"updated_at"`
}

func (AIReplySetting) TableName() string { return "ai_reply_settings" }

// NewAIReplySetting returns the settings an account starts with. Empty
// credentials fall back to the system ai_* settings.
func NewAIReplySetting(accountID string) AIReplySetting {
	return AIReplySetting{
		AccountID:          accountID,
		MaxDiscountPercent: 10,
		MaxDiscountAmount:  100,
		MaxBargainRounds:   3,
	}
}
