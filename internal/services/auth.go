package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/utils"
	"gorm.io/gorm"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

var (
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUserDisabled         = errors.New("user is disabled")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("username already exists")
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrIncorrectPassword    = errors.New("current password is incorrect")
	ErrNotLocalUser         = errors.New("LDAP users cannot change password here")
)

type AuthService struct {
	db       *gorm.DB
	ldap     *LDAPService
	jwt      *config.JWTConfig
	settings *SystemSettingService
}

func NewAuthService(db *gorm.DB, cfg *config.Config, settings *SystemSettingService) *AuthService {
	return &AuthService{
		db:       db,
		ldap:     NewLDAPService(&cfg.LDAP),
		jwt:      &cfg.JWT,
		settings: settings,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	var (
		user *models.User
		err  error
	)
	switch req.AuthType {
	case "", models.AuthLocal:
		user, err = s.localAuth(ctx, req.Username, req.Password)
	case models.AuthLDAP:
		user, err = s.ldapAuth(ctx, req.Username, req.Password)
	default:
		return nil, fmt.Errorf("%w: auth type %q", ErrInvalidInput, req.AuthType)
	}
	if err != nil {
		return nil, err
	}

	hours := s.jwt.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, hours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return &LoginResult{Token: token, User: user, ExpireAt: now.Add(time.Duration(hours) * time.Hour)}, nil
}

func (s *AuthService) localAuth(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? AND auth_type = ?", username, models.AuthLocal).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthService) ldapAuth(ctx context.Context, username, password string) (*models.User, error) {
	ldapUser, err := s.ldap.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).Where("username = ? AND auth_type = ?", ldapUser.Username, models.AuthLDAP).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Username: ldapUser.Username,
			Email:    ldapUser.Email,
			Role:     models.RoleUser,
			AuthType: models.AuthLDAP,
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if ldapUser.Email != "" && ldapUser.Email != user.Email {
		s.db.WithContext(ctx).Model(&user).Update("email", ldapUser.Email)
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool { return s.ldap.IsEnabled() }

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// Register creates a local user when registration_enabled allows it.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if !s.settings.GetBool(ctx, "registration_enabled", true) {
		return nil, ErrRegistrationDisabled
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username: username,
		Password: hash,
		Email:    req.Email,
		Role:     models.RoleUser,
		AuthType: models.AuthLocal,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds admin/admin123 on an empty user table.
func (s *AuthService) CreateAdminIfNotExists(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(DefaultAdminPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.User{
		Username: DefaultAdminUsername,
		Password: hash,
		Role:     models.RoleAdmin,
		AuthType: models.AuthLocal,
		IsActive: true,
	}).Error
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword verifies the current password and stores the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.AuthType != models.AuthLocal {
		return ErrNotLocalUser
	}
	if !utils.CheckPassword(req.CurrentPassword, user.Password) {
		return ErrIncorrectPassword
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(user).Update("password", hash).Error
}
