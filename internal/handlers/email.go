package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type EmailHandler struct {
	email *services.EmailService
}

func NewEmailHandler(email *services.EmailService) *EmailHandler {
	return &EmailHandler{email: email}
}

type testEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// SendTest mails the recipient through the stored SMTP settings.
// POST /api/test-email
func (h *EmailHandler) SendTest(c *gin.Context) {
	var req testEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email is required")
		return
	}
	err := h.email.SendTest(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		response.Success(c, "Test email sent to "+req.Email)
	case errors.Is(err, services.ErrSMTPNotConfigured), errors.Is(err, services.ErrInvalidEmail):
		response.BadRequest(c, err.Error())
	default:
		c.JSON(http.StatusBadGateway, response.Response{Message: "Failed to send test email", Detail: err.Error()})
	}
}
