package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/replydesk/internal/services"
	"github.com/huangang/replydesk/pkg/settings"
)

const maxAuditBody = 2000

const masked = "***"

// AuditLog records every write request in system_logs with secrets masked.
// Multipart bodies are not captured.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = MaskBody(raw, c.Param("key"))
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		module, action := routeInfo(c.FullPath(), method)
		entry := services.LogEntry{
			Module:    module,
			Action:    action,
			Message:   fmt.Sprintf("%s %s %s -> %d", GetUsername(c), method, c.Request.URL.Path, status),
			UserID:    uid,
			IP:        c.ClientIP(),
			RequestID: c.GetString("request_id"),
			Extra:     map[string]interface{}{"status": status, "body": body},
		}
		if status >= http.StatusBadRequest {
			services.LogWarning(entry)
			return
		}
		services.LogInfo(entry)
	}
}

// routeInfo turns "/api/system-settings/:key" + PUT into ("system-settings", "update").
func routeInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	path = strings.TrimPrefix(path, "admin/")
	module, _, _ = strings.Cut(path, "/")
	if module == "" {
		module = "unknown"
	}
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	}
	return module, action
}

var sensitiveFields = []string{"password", "api_key", "secret", "token"}

func isSensitive(field string) bool {
	f := strings.ToLower(field)
	if settings.IsSecret(f) {
		return true
	}
	for _, s := range sensitiveFields {
		if strings.Contains(f, s) {
			return true
		}
	}
	return false
}

// MaskBody renders a JSON body with secret values replaced. settingKey is the
// :key route parameter; a secret key masks the "value" field too.
func MaskBody(raw []byte, settingKey string) string {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	doc = maskValue(doc)
	if m, ok := doc.(map[string]interface{}); ok && settingKey != "" && isSensitive(settingKey) {
		if _, has := m["value"]; has {
			m["value"] = masked
		}
	}
	out, _ := json.Marshal(doc)
	return string(out)
}

func maskValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			if isSensitive(k) {
				t[k] = masked
				continue
			}
			t[k] = maskValue(inner)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = maskValue(t[i])
		}
		return t
	default:
		return v
	}
}
