package client

import (
	"context"
	"net/url"
)

// KnowledgeBase is the product knowledge stored for one item of an account.
type KnowledgeBase struct {
	Content   string `json:"knowledge_base"`
	Title     string `json:"title,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func knowledgeBasePath(accountID, itemID string) string {
	return "/items/" + url.PathEscape(accountID) + "/" + url.PathEscape(itemID) + "/knowledge-base"
}

// GetKnowledgeBase returns the item's knowledge base; an item without one
// has empty Content.
func (c *Client) GetKnowledgeBase(ctx context.Context, accountID, itemID string) (*KnowledgeBase, error) {
	var out KnowledgeBase
	resp, err := c.request(ctx).SetResult(&out).Get(knowledgeBasePath(accountID, itemID))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveKnowledgeBase replaces the item's knowledge base. An empty title keeps
// the stored one.
func (c *Client) SaveKnowledgeBase(ctx context.Context, accountID, itemID, title, content string) (Result, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"knowledge_base": content, "title": title}).
		Put(knowledgeBasePath(accountID, itemID))
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Knowledge base saved", "Failed to save knowledge base")
}
