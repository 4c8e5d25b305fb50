package client

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Login authenticates and keeps the issued token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	resp, err := c.request(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&out).
		Post("/login")
	if _, err := mutate(resp, err); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login response carried no token")
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) LoginInfo(ctx context.Context) (*LoginInfo, error) {
	var out LoginInfo
	resp, err := c.request(ctx).SetResult(&out).Get("/login-info")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	resp, err := c.request(ctx).SetResult(&out).Get("/accounts")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword changes the admin password. Local rules are the caller's
// concern; the backend enforces its own.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (Result, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"current_password": current, "new_password": next}).
		Post("/change-admin-password")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Password changed", "Failed to change password")
}

// TestEmail sends a test message through the stored SMTP settings.
func (c *Client) TestEmail(ctx context.Context, to string) (Result, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		err := &ValidationError{Msg: "enter a recipient address"}
		return failed(err.Msg), err
	}
	resp, err := c.request(ctx).SetBody(map[string]string{"email": to}).Post("/test-email")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Test email sent", "Failed to send test email")
}

// ReloadCache asks the backend to refresh its settings cache.
func (c *Client) ReloadCache(ctx context.Context) (Result, error) {
	resp, err := c.request(ctx).Post("/admin/reload-cache")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "System cache reloaded", "Failed to reload cache")
}

func (c *Client) GetUserSettings(ctx context.Context) (UserSettings, error) {
	out := UserSettings{}
	resp, err := c.request(ctx).SetResult(&out).Get("/user-settings")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserSetting(ctx context.Context, key string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	resp, err := c.request(ctx).SetResult(&out).Get("/user-settings/" + url.PathEscape(key))
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.Value, nil
}

func (c *Client) UpdateUserSetting(ctx context.Context, key, value, description string) (Result, error) {
	body := map[string]string{"value": value}
	if description != "" {
		body["description"] = description
	}
	resp, err := c.request(ctx).SetBody(body).Put("/user-settings/" + url.PathEscape(key))
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Setting saved", "Failed to save setting")
}
