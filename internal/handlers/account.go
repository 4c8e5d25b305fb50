package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/middleware"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/huangang/replydesk/pkg/response"
)

type AccountHandler struct {
	accounts *services.AccountService
	replies  *services.AIReplyService
	ai       *services.AIService
}

func NewAccountHandler(accounts *services.AccountService, replies *services.AIReplyService, ai *services.AIService) *AccountHandler {
	return &AccountHandler{accounts: accounts, replies: replies, ai: ai}
}

// List returns the caller's accounts; admins see every account.
// GET /api/accounts
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accounts.List(c.Request.Context(), middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Raw(c, accounts)
}

// Create registers an account. Without user_id it belongs to the caller.
// POST /api/accounts
func (h *AccountHandler) Create(c *gin.Context) {
	var req services.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "id is required")
		return
	}
	if req.UserID == 0 {
		req.UserID = middleware.GetUserID(c)
	}
	account, err := h.accounts.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Account created", gin.H{"account": account})
}

// GetAISettings returns AI settings keyed by account id. Accounts without
// stored settings are reported with their defaults.
// GET /api/ai-reply-settings
func (h *AccountHandler) GetAISettings(c *gin.Context) {
	ctx := c.Request.Context()
	userID, admin := middleware.GetUserID(c), middleware.IsAdmin(c)

	stored, err := h.replies.ListForUser(ctx, userID, admin)
	if err != nil {
		fail(c, err)
		return
	}
	accounts, err := h.accounts.List(ctx, userID, admin)
	if err != nil {
		fail(c, err)
		return
	}
	for _, a := range accounts {
		if _, ok := stored[a.ID]; !ok {
			stored[a.ID] = models.NewAIReplySetting(a.ID)
		}
	}
	response.Raw(c, stored)
}

// UpdateAISettings replaces one account's AI settings.
// PUT /api/ai-reply-settings
func (h *AccountHandler) UpdateAISettings(c *gin.Context) {
	var req models.AIReplySetting
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid AI settings")
		return
	}
	if req.AccountID == "" {
		response.BadRequest(c, "account_id is required")
		return
	}
	if !h.owns(c, req.AccountID) {
		return
	}
	if err := h.replies.Upsert(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "AI settings saved")
}

// TestReply runs one AI completion as the account.
// POST /api/ai-reply-test/:accountId
func (h *AccountHandler) TestReply(c *gin.Context) {
	var req services.TestReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "message is required")
		return
	}

	res, err := h.ai.TestReply(c.Request.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), c.Param("accountId"), &req)
	if err != nil {
		appErr := statusOf(err)
		if appErr.HTTPStatus == http.StatusInternalServerError {
			// the provider rejected or failed the call
			logger.Warn().Err(err).Str("account", c.Param("accountId")).Msg("AI reply test failed")
			c.JSON(http.StatusBadGateway, response.Response{Message: "AI provider call failed", Detail: err.Error()})
			return
		}
		response.Error(c, appErr)
		return
	}
	response.Success(c, "AI connection test succeeded", gin.H{
		"reply":    res.Reply,
		"provider": res.Provider,
		"model":    res.Model,
	})
}

func (h *AccountHandler) owns(c *gin.Context, accountID string) bool {
	return ownsAccount(c, h.accounts, accountID)
}

// ownsAccount writes a 404 and returns false unless the caller is an admin
// or owns the account. Other users' accounts are reported as missing.
func ownsAccount(c *gin.Context, accounts *services.AccountService, accountID string) bool {
	account, err := accounts.Get(c.Request.Context(), accountID)
	if err != nil {
		fail(c, err)
		return false
	}
	if !middleware.IsAdmin(c) && account.UserID != middleware.GetUserID(c) {
		fail(c, services.ErrAccountNotFound)
		return false
	}
	return true
}
