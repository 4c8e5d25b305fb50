package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangang/replydesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidInput    = errors.New("invalid input")
)

type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

// List returns the accounts visible to the caller; admins see all of them.
func (s *AccountService) List(ctx context.Context, userID uint, admin bool) ([]models.Account, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if !admin {
		q = q.Where("user_id = ?", userID)
	}
	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return &a, err
}

type CreateAccountRequest struct {
	ID      string `json:"id" binding:"required"`
	UserID  uint   `json:"user_id"`
	Remark  string `json:"remark"`
	Enabled *bool  `json:"enabled"`
}

func (s *AccountService) Create(ctx context.Context, req *CreateAccountRequest) (*models.Account, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	a := models.Account{ID: id, UserID: req.UserID, Remark: req.Remark, Enabled: true}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, fmt.Errorf("create account %s: %w", id, err)
	}
	return &a, nil
}

type AIReplyService struct {
	db *gorm.DB
}

func NewAIReplyService(db *gorm.DB) *AIReplyService {
	return &AIReplyService{db: db}
}

// ListForUser returns per-account AI settings keyed by account id.
func (s *AIReplyService) ListForUser(ctx context.Context, userID uint, admin bool) (map[string]models.AIReplySetting, error) {
	accounts, err := NewAccountService(s.db).List(ctx, userID, admin)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	out := make(map[string]models.AIReplySetting, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.AIReplySetting
	if err := s.db.WithContext(ctx).Where("account_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.AccountID] = r
	}
	return out, nil
}

// Get returns the stored settings, or nil when the account has none yet.
func (s *AIReplyService) Get(ctx context.Context, accountID string) (*models.AIReplySetting, error) {
	var row models.AIReplySetting
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert replaces the account's AI settings.
func (s *AIReplyService) Upsert(ctx context.Context, in *models.AIReplySetting) error {
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	if _, err := NewAccountService(s.db).Get(ctx, in.AccountID); err != nil {
		return err
	}
	if in.MaxDiscountPercent < 0 || in.MaxDiscountPercent > 100 {
		return fmt.Errorf("%w: max_discount_percent must be between 0 and 100", ErrInvalidInput)
	}
	if in.MaxBargainRounds < 0 {
		return fmt.Errorf("%w: max_bargain_rounds must not be negative", ErrInvalidInput)
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(in).Error
}
