package models

import "time"

// MaxKnowledgeBaseLength caps an item's knowledge base, in characters.
const MaxKnowledgeBaseLength = 10000

// ItemKnowledgeBase is the free-text product knowledge the AI reply engine
// draws on when answering questions about one item of an account.
type ItemKnowledgeBase struct {
	AccountID string    `gorm:"primaryKey;size:100" json:"account_id"`
	ItemID    string    `gorm:"primaryKey;size:100" json:"item_id"`
	Title     string    `gorm:"size:255" json:"title,omitempty"`
	Content   string    `gorm:"type:text" json:"knowledge_base"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ItemKnowledgeBase) TableName() string { return "item_knowledge_bases" }
