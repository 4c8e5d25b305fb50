package client

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/huangang/replydesk/pkg/settings"
)

// TestMessage is the prompt sent by an AI connection test.
const TestMessage = "Hello, this is a test message"

func (c *Client) GetAISettings(ctx context.Context) (map[string]AIReplySettings, error) {
	out := map[string]AIReplySettings{}
	resp, err := c.request(ctx).SetResult(&out).Get("/ai-reply-settings")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateAISettings(ctx context.Context, s AIReplySettings) (Result, error) {
	resp, err := c.request(ctx).SetBody(s).Put("/ai-reply-settings")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "AI settings saved", "Failed to save AI settings")
}

type testSettings struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	ModelName string `json:"model_name"`
}

type aiTestRequest struct {
	Message      string        `json:"message"`
	TestSettings *testSettings `json:"test_settings,omitempty"`
}

// TestAIConnection asks the backend to produce a reply as accountID. When
// draft carries all three of key, URL and model they override the stored
// provider settings for this one call; a partial draft is ignored.
func (c *Client) TestAIConnection(ctx context.Context, accountID string, draft *settings.AICredentials) (Result, error) {
	if accountID == "" {
		return failed(ErrNoTestAccount.Msg), ErrNoTestAccount
	}

	body := aiTestRequest{Message: TestMessage}
	if draft != nil && draft.Complete() {
		body.TestSettings = &testSettings{
			APIKey:    draft.APIKey,
			BaseURL:   draft.BaseURL,
			ModelName: draft.Model,
		}
	}

	resp, err := c.request(ctx).SetBody(body).Post("/ai-reply-test/" + url.PathEscape(accountID))
	if err := checkResponse(resp, err); err != nil {
		return ResultOf(err, "", "AI connection test failed"), err
	}

	payload := resp.Body()
	if reply := gjson.GetBytes(payload, "reply").String(); reply != "" {
		return ok("AI reply: " + reply), nil
	}
	success := true
	if s := gjson.GetBytes(payload, "success"); s.Exists() {
		success = s.Bool()
	}
	msg := gjson.GetBytes(payload, "message").String()
	if msg == "" {
		if success {
			msg = "AI connection test succeeded"
		} else {
			msg = "AI connection test failed"
		}
	}
	if !success {
		return failed(msg), &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return ok(msg), nil
}
