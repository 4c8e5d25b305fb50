package handlers

import (
	"net/http"
	"testing"

	"github.com/huangang/replydesk/internal/models"
)

func TestSystemSettings_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	w := env.do(t, http.MethodGet, "/api/system-settings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	body := decode(t, w)
	if body["smtp_port"] != "587" || body["registration_enabled"] != "true" {
		t.Errorf("settings must be raw strings, got smtp_port=%v registration_enabled=%v", body["smtp_port"], body["registration_enabled"])
	}

	w = env.do(t, http.MethodGet, "/api/system-settings/ai_model", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode(t, w); got["key"] != "ai_model" || got["value"] != "qwen-plus" {
		t.Errorf("unexpected get body %v", got)
	}

	w = env.do(t, http.MethodGet, "/api/system-settings/no_such_key", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing key status = %d, want 404", w.Code)
	}
}

func TestSystemSettings_Update(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	tests := []struct {
		name     string
		key      string
		body     interface{}
		wantCode int
		want     string
	}{
		{"string value", "smtp_server", map[string]string{"value": "smtp.example.com"}, http.StatusOK, "smtp.example.com"},
		{"bool normalized", "registration_enabled", map[string]string{"value": "0"}, http.StatusOK, "false"},
		{"int trimmed", "smtp_port", map[string]string{"value": " 465 "}, http.StatusOK, "465"},
		{"empty secret", "qq_reply_secret_key", map[string]string{"value": ""}, http.StatusOK, ""},
		{"port out of range", "smtp_port", map[string]string{"value": "70000"}, http.StatusBadRequest, ""},
		{"bad bool", "login_captcha_enabled", map[string]string{"value": "yes"}, http.StatusBadRequest, ""},
		{"typed value", "smtp_port", `{"value": 587}`, http.StatusBadRequest, ""},
		{"missing value", "smtp_port", `{}`, http.StatusBadRequest, ""},
		{"bad key", "Bad-Key", map[string]string{"value": "x"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/system-settings/"+tt.key, token, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			body := decode(t, w)
			if tt.wantCode != http.StatusOK {
				if body["success"] == true {
					t.Errorf("error response reported success: %v", body)
				}
				return
			}
			if body["success"] != true {
				t.Errorf("expected success envelope, got %v", body)
			}
			got, err := env.settings.Get(t.Context(), tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("stored %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSystemSettings_ReloadCache(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	// bypass the service so only a reload can surface the change
	if err := env.db.Model(&models.SystemSetting{}).Where(&models.SystemSetting{Key: "ai_model"}).Update("value", "custom-model").Error; err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/admin/reload-cache", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	if body := decode(t, w); body["success"] != true || body["cache"] != "memory" {
		t.Errorf("unexpected reload body %v", body)
	}
	got, _ := env.settings.Get(t.Context(), "ai_model")
	if got != "custom-model" {
		t.Errorf("ai_model after reload = %q", got)
	}
}

func TestUserSettings(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "frank")

	w := env.do(t, http.MethodPut, "/api/user-settings/theme", token, map[string]string{"value": "dark", "description": "UI theme"})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/user-settings/theme", token, nil)
	if got := decode(t, w); got["value"] != "dark" || got["description"] != "UI theme" {
		t.Errorf("unexpected get body %v", got)
	}

	w = env.do(t, http.MethodGet, "/api/user-settings", token, nil)
	list := decode(t, w)
	theme, ok := list["theme"].(map[string]interface{})
	if !ok || theme["value"] != "dark" {
		t.Errorf("unexpected list body %v", list)
	}

	_, other := env.userToken(t, "grace")
	w = env.do(t, http.MethodGet, "/api/user-settings/theme", other, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("other user's setting status = %d, want 404", w.Code)
	}
}
