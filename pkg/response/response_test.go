package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return body
}

func TestRaw(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Raw(c, map[string]string{"smtp_port": "587"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	body := parseBody(t, w)
	if body["smtp_port"] != "587" {
		t.Errorf("expected raw payload, got %v", body)
	}
	if _, ok := body["success"]; ok {
		t.Error("raw payload must not be wrapped")
	}
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, "saved")
	})

	body := parseBody(t, w)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	if body["message"] != "saved" {
		t.Errorf("expected message 'saved', got %v", body["message"])
	}
}

func TestSuccess_MergesExtra(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, "logged in", gin.H{"token": "abc"})
	})

	body := parseBody(t, w)
	if body["token"] != "abc" || body["success"] != true {
		t.Errorf("unexpected body %v", body)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(c *gin.Context, msg string)
		status int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"unauthorized", Unauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden, http.StatusForbidden},
		{"not found", NotFound, http.StatusNotFound},
		{"server error", ServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(func(c *gin.Context) {
				tt.fn(c, "boom")
			})
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			body := parseBody(t, w)
			if body["success"] != false {
				t.Errorf("expected success false, got %v", body["success"])
			}
			if body["detail"] != "boom" {
				t.Errorf("expected detail 'boom', got %v", body["detail"])
			}
		})
	}
}

func TestError_WithAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, NewBadRequest("validation failed").WithDetail("smtp_port must be an integer"))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	body := parseBody(t, w)
	if body["message"] != "validation failed" {
		t.Errorf("expected message 'validation failed', got %v", body["message"])
	}
	if body["detail"] != "smtp_port must be an integer" {
		t.Errorf("unexpected detail %v", body["detail"])
	}
}

func TestError_WithGenericError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("something went wrong"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	body := parseBody(t, w)
	if body["detail"] != "something went wrong" {
		t.Errorf("unexpected detail %v", body["detail"])
	}
}

func TestAppError_ErrorInterface(t *testing.T) {
	err := NewNotFound("setting not found")
	if err.Error() != "setting not found" {
		t.Errorf("expected 'setting not found', got %q", err.Error())
	}
	if got := err.WithDetail("smtp_x").Error(); got != "setting not found: smtp_x" {
		t.Errorf("unexpected %q", got)
	}
	if err.Detail != "" {
		t.Error("WithDetail must not mutate the receiver")
	}
}
