package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/replydesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserSettingService struct {
	db *gorm.DB
}

func NewUserSettingService(db *gorm.DB) *UserSettingService {
	return &UserSettingService{db: db}
}

type UserSettingValue struct {
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *UserSettingService) List(ctx context.Context, userID uint) (map[string]UserSettingValue, error) {
	var rows []models.UserSetting
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]UserSettingValue, len(rows))
	for _, r := range rows {
		out[r.Key] = UserSettingValue{Value: r.Value, Description: r.Description, UpdatedAt: r.UpdatedAt}
	}
	return out, nil
}

func (s *UserSettingService) Get(ctx context.Context, userID uint, key string) (*models.UserSetting, error) {
	var row models.UserSetting
	err := s.db.WithContext(ctx).Where(&models.UserSetting{UserID: userID, Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Set upserts a value. An empty description keeps the stored one.
func (s *UserSettingService) Set(ctx context.Context, userID uint, key, value, description string) error {
	if !settingKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidSettingKey, key)
	}
	updates := []string{"value", "updated_at"}
	if description != "" {
		updates = append(updates, "description")
	}
	row := models.UserSetting{UserID: userID, Key: key, Value: value, Description: description}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error
}
