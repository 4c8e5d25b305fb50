package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/internal/utils"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/huangang/replydesk/pkg/response"
)

// statusOf maps service sentinels to HTTP errors. Unknown errors become 500s.
func statusOf(err error) *response.AppError {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	msg := err.Error()
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserDisabled):
		return response.NewUnauthorized(msg)
	case errors.Is(err, services.ErrRegistrationDisabled),
		errors.Is(err, services.ErrNotLocalUser):
		return response.NewForbidden(msg)
	case errors.Is(err, services.ErrSettingNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrBackupNotFound):
		return response.NewNotFound(msg)
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrAccountExists):
		return response.NewConflict(msg)
	case errors.Is(err, services.ErrInvalidSettingKey),
		errors.Is(err, services.ErrInvalidSettingValue),
		errors.Is(err, services.ErrIncorrectPassword),
		errors.Is(err, services.ErrInvalidBackupName),
		errors.Is(err, services.ErrNotSQLiteFile),
		errors.Is(err, services.ErrUnsupportedBackupVersion),
		errors.Is(err, services.ErrSMTPNotConfigured),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrAICredentialsMissing),
		errors.Is(err, services.ErrLDAPDisabled),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrKnowledgeBaseTooLong),
		errors.Is(err, utils.ErrPasswordTooShort):
		return response.NewBadRequest(msg)
	}
	return response.NewServerError("internal server error").WithDetail(msg)
}

func fail(c *gin.Context, err error) {
	appErr := statusOf(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	response.Error(c, appErr)
}
