package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/replydesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const UserBackupVersion = "1.0"

var ErrUnsupportedBackupVersion = errors.New("unsupported user backup version")

type UserSettingExport struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// UserBackup is the JSON document behind /backup/export and /backup/import.
type UserBackup struct {
	Version         string                     `json:"version"`
	ExportedAt      time.Time                  `json:"exported_at"`
	Username        string                     `json:"username,omitempty"`
	UserSettings    []UserSettingExport        `json:"user_settings"`
	Accounts        []models.Account           `json:"accounts"`
	AIReplySettings []models.AIReplySetting    `json:"ai_reply_settings"`
	// absent in exports from before knowledge bases existed
	KnowledgeBases  []models.ItemKnowledgeBase `json:"knowledge_bases,omitempty"`
}

type ImportResult struct {
	UserSettings    int `json:"user_settings"`
	Accounts        int `json:"accounts"`
	AIReplySettings int `json:"ai_reply_settings"`
	KnowledgeBases  int `json:"knowledge_bases"`
	Skipped         int `json:"skipped"`
}

type UserBackupService struct {
	db *gorm.DB
}

func NewUserBackupService(db *gorm.DB) *UserBackupService {
	return &UserBackupService{db: db}
}

func (s *UserBackupService) Export(ctx context.Context, user *models.User) (*UserBackup, error) {
	db := s.db.WithContext(ctx)
	out := &UserBackup{
		Version:         UserBackupVersion,
		ExportedAt:      time.Now().UTC(),
		Username:        user.Username,
		UserSettings:    []UserSettingExport{},
		Accounts:        []models.Account{},
		AIReplySettings: []models.AIReplySetting{},
	}

	var settings []models.UserSetting
	if err := db.Where("user_id = ?", user.ID).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("export user settings: %w", err)
	}
	for _, st := range settings {
		out.UserSettings = append(out.UserSettings, UserSettingExport{Key: st.Key, Value: st.Value, Description: st.Description})
	}

	if err := db.Where("user_id = ?", user.ID).Order("created_at").Find(&out.Accounts).Error; err != nil {
		return nil, fmt.Errorf("export accounts: %w", err)
	}
	if len(out.Accounts) > 0 {
		ids := make([]string, len(out.Accounts))
		for i, a := range out.Accounts {
			ids[i] = a.ID
		}
		if err := db.Where("account_id IN ?", ids).Find(&out.AIReplySettings).Error; err != nil {
			return nil, fmt.Errorf("export ai reply settings: %w", err)
		}
		kbs, err := NewKnowledgeBaseService(s.db).ForAccounts(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("export knowledge bases: %w", err)
		}
		out.KnowledgeBases = kbs
	}
	return out, nil
}

// Import merges a user backup into the caller's data in one transaction.
// Accounts owned by someone else, or without an id, are skipped together with
// their AI settings and knowledge bases.
func (s *UserBackupService) Import(ctx context.Context, user *models.User, data *UserBackup) (*ImportResult, error) {
	if data.Version != UserBackupVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackupVersion, data.Version)
	}

	res := &ImportResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range data.UserSettings {
			if !settingKeyPattern.MatchString(st.Key) {
				res.Skipped++
				continue
			}
			row := models.UserSetting{UserID: user.ID, Key: st.Key, Value: st.Value, Description: st.Description}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
			res.UserSettings++
		}

		owned := make(map[string]bool, len(data.Accounts))
		for _, a := range data.Accounts {
			a.ID = strings.TrimSpace(a.ID)
			if a.ID == "" {
				res.Skipped++
				continue
			}
			var existing models.Account
			err := tx.Where("id = ?", a.ID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				a.UserID = user.ID
				if err := tx.Create(&a).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			case existing.UserID != user.ID && !user.IsAdmin():
				res.Skipped++
				continue
			default:
				if err := tx.Model(&existing).Updates(map[string]interface{}{"enabled": a.Enabled, "remark": a.Remark}).Error; err != nil {
					return err
				}
			}
			owned[a.ID] = true
			res.Accounts++
		}

		for _, ai := range data.AIReplySettings {
			if !owned[ai.AccountID] {
				res.Skipped++
				continue
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&ai).Error; err != nil {
				return err
			}
			res.AIReplySettings++
		}

		for _, kb := range data.KnowledgeBases {
			if !owned[kb.AccountID] || validateKnowledgeBase(&kb) != nil {
				res.Skipped++
				continue
			}
			if err := saveKnowledgeBase(tx, &kb); err != nil {
				return err
			}
			res.KnowledgeBases++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import user backup: %w", err)
	}
	return res, nil
}
