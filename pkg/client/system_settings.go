package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/huangang/replydesk/pkg/settings"
)

// KeyError records one key that failed to save.
type KeyError struct {
	Key string
	Err error
}

func (e KeyError) Error() string { return e.Key + ": " + e.Err.Error() }

// SaveError is returned when at least one key failed. Keys listed in
// SaveResult.Applied were written and stay written.
type SaveError struct {
	Failed []KeyError
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save %d setting(s): %s", len(e.Failed), strings.Join(failedKeys(e.Failed), ", "))
}

func (e *SaveError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// SaveResult is the aggregate of a per-key save.
type SaveResult struct {
	Result
	Applied []string
	Failed  []KeyError
}

// LoadSystemSettings fetches every system setting and decodes the typed view.
func (c *Client) LoadSystemSettings(ctx context.Context) (settings.SystemSettings, error) {
	var raw map[string]any
	resp, err := c.request(ctx).SetResult(&raw).Get("/system-settings")
	if err := checkResponse(resp, err); err != nil {
		return settings.SystemSettings{}, err
	}
	return settings.Decode(raw), nil
}

// GetSystemSetting fetches a single raw value.
func (c *Client) GetSystemSetting(ctx context.Context, key string) (string, error) {
	var out struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	resp, err := c.request(ctx).SetResult(&out).Get("/system-settings/" + url.PathEscape(key))
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return out.Value, nil
}

// PutSystemSetting writes one key with its wire value.
func (c *Client) PutSystemSetting(ctx context.Context, key, value string) error {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"value": value}).
		Put("/system-settings/" + url.PathEscape(key))
	_, err = mutate(resp, err)
	return err
}

// SaveSystemSettings writes every defined key of patch, one PUT per key, all
// in flight at once. It is not atomic: a failure of one key neither cancels
// nor rolls back the others. The aggregate succeeds only if every key did.
func (c *Client) SaveSystemSettings(ctx context.Context, patch settings.SystemSettings) (*SaveResult, error) {
	entries := settings.Encode(patch)
	errs := make([]error, len(entries))

	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			errs[i] = c.PutSystemSetting(ctx, e.Key, e.Value)
			return errs[i]
		})
	}
	_ = g.Wait()

	res := &SaveResult{}
	for i, e := range entries {
		if errs[i] != nil {
			res.Failed = append(res.Failed, KeyError{Key: e.Key, Err: errs[i]})
			continue
		}
		res.Applied = append(res.Applied, e.Key)
	}

	if len(res.Failed) == 0 {
		res.Result = ok("Settings saved")
		return res, nil
	}
	saveErr := &SaveError{Failed: res.Failed}
	res.Result = failed(fmt.Sprintf("Failed to save settings (%s)", strings.Join(failedKeys(res.Failed), ", ")))
	return res, saveErr
}

func failedKeys(failed []KeyError) []string {
	out := make([]string, len(failed))
	for i, f := range failed {
		out[i] = f.Key
	}
	return out
}
