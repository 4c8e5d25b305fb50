package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/huangang/replydesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrKnowledgeBaseTooLong = fmt.Errorf("knowledge base exceeds %d characters", models.MaxKnowledgeBaseLength)

type KnowledgeBaseService struct {
	db *gorm.DB
}

func NewKnowledgeBaseService(db *gorm.DB) *KnowledgeBaseService {
	return &KnowledgeBaseService{db: db}
}

// Get returns the item's knowledge base. An item without one yields an
// empty record rather than an error.
func (s *KnowledgeBaseService) Get(ctx context.Context, accountID, itemID string) (*models.ItemKnowledgeBase, error) {
	var row models.ItemKnowledgeBase
	err := s.db.WithContext(ctx).Where("account_id = ? AND item_id = ?", accountID, itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ItemKnowledgeBase{AccountID: accountID, ItemID: itemID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load knowledge base %s/%s: %w", accountID, itemID, err)
	}
	return &row, nil
}

// Save replaces the item's knowledge base. An empty title keeps the stored one.
func (s *KnowledgeBaseService) Save(ctx context.Context, kb *models.ItemKnowledgeBase) error {
	if err := validateKnowledgeBase(kb); err != nil {
		return err
	}
	if _, err := NewAccountService(s.db).Get(ctx, kb.AccountID); err != nil {
		return err
	}
	return saveKnowledgeBase(s.db.WithContext(ctx), kb)
}

// ForAccounts returns the non-empty knowledge bases of the given accounts.
func (s *KnowledgeBaseService) ForAccounts(ctx context.Context, accountIDs []string) ([]models.ItemKnowledgeBase, error) {
	out := []models.ItemKnowledgeBase{}
	if len(accountIDs) == 0 {
		return out, nil
	}
	err := s.db.WithContext(ctx).
		Where("account_id IN ? AND content <> ''", accountIDs).
		Order("account_id, item_id").
		Find(&out).Error
	return out, err
}

func validateKnowledgeBase(kb *models.ItemKnowledgeBase) error {
	kb.AccountID = strings.TrimSpace(kb.AccountID)
	kb.ItemID = strings.TrimSpace(kb.ItemID)
	if kb.AccountID == "" || kb.ItemID == "" {
		return fmt.Errorf("%w: account and item id are required", ErrInvalidInput)
	}
	if len(kb.ItemID) > 100 {
		return fmt.Errorf("%w: item id is too long", ErrInvalidInput)
	}
	if utf8.RuneCountInString(kb.Content) > models.MaxKnowledgeBaseLength {
		return ErrKnowledgeBaseTooLong
	}
	return nil
}

func saveKnowledgeBase(db *gorm.DB, kb *models.ItemKnowledgeBase) error {
	columns := []string{"content", "updated_at"}
	if kb.Title != "" {
		columns = append(columns, "title")
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(kb).Error
}
