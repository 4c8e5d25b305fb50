package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/pkg/logger"
)

// promptKeys are the entries an account's custom_prompts object may hold.
var promptKeys = []string{"classify", "price", "tech", "default"}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := models.InitDB(&cfg.Database, false); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	var rows []models.AIReplySetting
	if err := db.Order("account_id").Find(&rows).Error; err != nil {
		logger.Fatalf("Failed to read AI reply settings: %v", err)
	}

	fmt.Printf("Found %d account(s) with AI reply settings:\n\n", len(rows))
	for _, r := range rows {
		fmt.Printf("=== Account: %s (AI %s) ===\n", r.AccountID, onOff(r.AIEnabled))
		if r.CustomPrompts == "" {
			fmt.Println("(no custom prompts)")
		} else {
			fmt.Println(r.CustomPrompts)
		}
		fmt.Println(strings.Repeat("-", 80))
	}

	if len(os.Args) < 2 || os.Args[1] != "--update" {
		fmt.Println("\nTo convert plain-text prompts, run: go run scripts/update_prompts.go --update")
		return
	}

	fmt.Println("\n>>> Converting plain-text prompts to {\"default\": ...} objects...")
	for _, r := range rows {
		next, changed := migratePrompts(r.CustomPrompts)
		if !changed {
			fmt.Printf("Skipped %s (already structured or empty)\n", r.AccountID)
			continue
		}
		if err := db.Model(&models.AIReplySetting{}).
			Where(&models.AIReplySetting{AccountID: r.AccountID}).
			Update("custom_prompts", next).Error; err != nil {
			fmt.Printf("Failed to update %s: %v\n", r.AccountID, err)
			continue
		}
		fmt.Printf("Updated %s\n", r.AccountID)
	}
	fmt.Println("\n>>> Done!")
}

// migratePrompts turns a legacy plain-text prompt into the JSON object form
// and drops unknown entries from an existing object. Empty input is kept.
func migratePrompts(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return content, false
	}

	var obj map[string]string
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		out, _ := json.Marshal(map[string]string{"default": trimmed})
		return string(out), true
	}

	kept := make(map[string]string, len(obj))
	for _, k := range promptKeys {
		if v := strings.TrimSpace(obj[k]); v != "" {
			kept[k] = v
		}
	}
	if len(kept) == len(obj) {
		return content, false
	}
	out, _ := json.Marshal(kept)
	return string(out), true
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
