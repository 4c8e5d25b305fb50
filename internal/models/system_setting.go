package models

import "time"

// SystemSetting is one key of the global settings store. Value is always a
// string; Type records how the service validates writes to it.
type SystemSetting struct {
	Key         string    `gorm:"column:key;primaryKey;size:100" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Type        string    `gorm:"size:20;default:string" json:"type"` // string, int, bool
	Description string    `gorm:"size:255" json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// UserSetting is a per-user key/value pair with no typed conversion.
type UserSetting struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"uniqueIndex:idx_user_setting_key;not null" json:"-"`
	Key         string    `gorm:"column:key;uniqueIndex:idx_user_setting_key;size:100;not null" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UserSetting) TableName() string { return "user_settings" }
