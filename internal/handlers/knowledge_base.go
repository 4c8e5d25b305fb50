package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/response"
)

type KnowledgeBaseHandler struct {
	accounts *services.AccountService
	kb       *services.KnowledgeBaseService
}

func NewKnowledgeBaseHandler(accounts *services.AccountService, kb *services.KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{accounts: accounts, kb: kb}
}

// Get returns an item's knowledge base; an item without one reads as empty.
// GET /api/items/:accountId/:itemId/knowledge-base
func (h *KnowledgeBaseHandler) Get(c *gin.Context) {
	accountID := c.Param("accountId")
	if !ownsAccount(c, h.accounts, accountID) {
		return
	}
	kb, err := h.kb.Get(c.Request.Context(), accountID, c.Param("itemId"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "", gin.H{
		"knowledge_base": kb.Content,
		"title":          kb.Title,
		"updated_at":     kb.UpdatedAt,
	})
}

type saveKnowledgeBaseRequest struct {
	KnowledgeBase string `json:"knowledge_base"`
	Title         string `json:"title"`
}

// Update replaces an item's knowledge base.
// PUT /api/items/:accountId/:itemId/knowledge-base
func (h *KnowledgeBaseHandler) Update(c *gin.Context) {
	var req saveKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid knowledge base")
		return
	}
	accountID := c.Param("accountId")
	if !ownsAccount(c, h.accounts, accountID) {
		return
	}
	kb := &models.ItemKnowledgeBase{
		AccountID: accountID,
		ItemID:    c.Param("itemId"),
		Title:     req.Title,
		Content:   req.KnowledgeBase,
	}
	if err := h.kb.Save(c.Request.Context(), kb); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, "Knowledge base saved")
}
