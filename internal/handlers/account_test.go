package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huangang/replydesk/internal/models"
)

func TestAccounts_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	userID, user := env.userToken(t, "henry")

	w := env.do(t, http.MethodPost, "/api/accounts", admin, map[string]interface{}{"id": "10001", "user_id": userID, "remark": "shop"})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	env.do(t, http.MethodPost, "/api/accounts", admin, map[string]interface{}{"id": "20002"})

	w = env.do(t, http.MethodPost, "/api/accounts", admin, map[string]interface{}{"id": "10001"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/accounts", user, map[string]interface{}{"id": "30003"})
	if w.Code != http.StatusForbidden {
		t.Errorf("user create status = %d, want 403", w.Code)
	}

	var accounts []models.Account
	w = env.do(t, http.MethodGet, "/api/accounts", user, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &accounts); err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].ID != "10001" || !accounts[0].Enabled {
		t.Errorf("user accounts = %+v", accounts)
	}

	w = env.do(t, http.MethodGet, "/api/accounts", admin, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &accounts); err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Errorf("admin sees %d accounts, want 2", len(accounts))
	}
}

func TestAISettings_GetAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.userToken(t, "iris")
	if err := env.db.Create(&models.Account{ID: "acct-1", UserID: userID, Enabled: true}).Error; err != nil {
		t.Fatal(err)
	}
	if err := env.db.Create(&models.Account{ID: "acct-other", UserID: userID + 100, Enabled: true}).Error; err != nil {
		t.Fatal(err)
	}

	var got map[string]models.AIReplySetting
	w := env.do(t, http.MethodGet, "/api/ai-reply-settings", token, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["acct-1"].MaxBargainRounds != 3 {
		t.Errorf("defaults not reported: %+v", got)
	}

	update := models.AIReplySetting{
		AccountID:          "acct-1",
		AIEnabled:          true,
		ModelName:          "gpt-4o-mini",
		MaxDiscountPercent: 0,
		MaxBargainRounds:   5,
		CustomPrompts:      `{"default":"be brief"}`,
	}
	w = env.do(t, http.MethodPut, "/api/ai-reply-settings", token, update)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodGet, "/api/ai-reply-settings", token, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	stored := got["acct-1"]
	if !stored.AIEnabled || stored.MaxDiscountPercent != 0 || stored.MaxBargainRounds != 5 || stored.ModelName != "gpt-4o-mini" {
		t.Errorf("stored settings = %+v", stored)
	}

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
	}{
		{"missing account", map[string]interface{}{"ai_enabled": true}, http.StatusBadRequest},
		{"foreign account", map[string]interface{}{"account_id": "acct-other"}, http.StatusNotFound},
		{"unknown account", map[string]interface{}{"account_id": "nope"}, http.StatusNotFound},
		{"discount out of range", map[string]interface{}{"account_id": "acct-1", "max_discount_percent": 150}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/ai-reply-settings", token, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestAIReplyTest(t *testing.T) {
	var gotAuth, gotModel string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer provider.Close()

	env := newTestEnv(t)
	userID, token := env.userToken(t, "jack")
	if err := env.db.Create(&models.Account{ID: "acct-ai", UserID: userID, Enabled: true}).Error; err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/ai-reply-test/acct-ai", token, map[string]string{"message": "ping"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no credentials status = %d, want 400: %s", w.Code, w.Body.String())
	}

	draft := map[string]interface{}{
		"message": "ping",
		"test_settings": map[string]string{
			"api_key":    "sk-draft",
			"base_url":   provider.URL + "/v1",
			"model_name": "draft-model",
		},
	}
	w = env.do(t, http.MethodPost, "/api/ai-reply-test/acct-ai", token, draft)
	if w.Code != http.StatusOK {
		t.Fatalf("draft test status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["reply"] != "pong" {
		t.Errorf("unexpected body %v", body)
	}
	if gotAuth != "Bearer sk-draft" || gotModel != "draft-model" {
		t.Errorf("provider saw auth=%q model=%q", gotAuth, gotModel)
	}

	w = env.do(t, http.MethodPost, "/api/ai-reply-test/acct-ai", token, map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/ai-reply-test/unknown", token, draft)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", w.Code)
	}
}

func TestAIReplyTest_ProviderFailure(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer provider.Close()

	env := newTestEnv(t)
	userID, token := env.userToken(t, "kate")
	if err := env.db.Create(&models.Account{ID: "acct-fail", UserID: userID, Enabled: true}).Error; err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/ai-reply-test/acct-fail", token, map[string]interface{}{
		"message":       "ping",
		"test_settings": map[string]string{"api_key": "bad", "base_url": provider.URL + "/v1", "model_name": "m"},
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["success"] == true || body["detail"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}
