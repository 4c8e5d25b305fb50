package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/models"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/logger"
	"gorm.io/gorm/clause"
)

// canonical reports whether value is already in the form the service writes.
func canonical(typ, value string) bool {
	switch typ {
	case "bool":
		return value == "true" || value == "false"
	case "int":
		n, err := strconv.Atoi(value)
		return err == nil && strconv.Itoa(n) == value
	}
	return true
}

func main() {
	apply := flag.Bool("apply", false, "write the normalized values (default: report only)")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := models.InitDB(&cfg.Database, false); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	var rows []models.SystemSetting
	if err := db.Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		logger.Fatalf("Failed to read system settings: %v", err)
	}

	fmt.Printf("%-30s %-6s %-30s\n", "Key", "Type", "Value")
	fmt.Println(strings.Repeat("-", 70))

	var pending []models.SystemSetting
	for _, r := range rows {
		typ := r.Type
		if typ == "" {
			typ = models.SettingType(r.Key)
		}
		if canonical(typ, r.Value) {
			continue
		}
		fmt.Printf("%-30s %-6s %-30q\n", r.Key, typ, r.Value)
		pending = append(pending, r)
	}
	fmt.Printf("\n%d of %d setting(s) need normalizing\n", len(pending), len(rows))

	if !*apply {
		if len(pending) > 0 {
			fmt.Println("\nTo write them, run: go run ./cmd/scripts/normalize_settings --apply")
		}
		return
	}

	svc := services.NewSystemSettingService(db, nil)
	ctx := context.Background()
	failed := 0
	for _, r := range pending {
		value := strings.TrimSpace(r.Value)
		if typ := r.Type; typ == "bool" || (typ == "" && models.SettingType(r.Key) == "bool") {
			value = strings.ToLower(value)
		}
		if err := svc.Set(ctx, r.Key, value); err != nil {
			fmt.Printf("✗ %s: %v\n", r.Key, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s\n", r.Key)
	}
	fmt.Printf("\nDone: %d normalized, %d left for manual review\n", len(pending)-failed, failed)
}
