package console

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

const minPasswordLength = 6

// LoadAccounts refreshes the account list. The current test account is kept
// while it still exists, otherwise the first account is selected.
func (c *Controller) LoadAccounts(ctx context.Context) client.Result {
	return c.run(ActionAccounts, func() client.Result {
		accounts, err := c.gw.ListAccounts(ctx)
		if err != nil {
			return client.ResultOf(err, "", "Failed to load accounts")
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.accounts = accounts
		if !hasAccount(accounts, c.testAccount) {
			c.testAccount = ""
			if len(accounts) > 0 {
				c.testAccount = accounts[0].ID
			}
		}
		return client.Result{Success: true, Message: fmt.Sprintf("Loaded %d account(s)", len(accounts))}
	})
}

func hasAccount(accounts []client.Account, id string) bool {
	if id == "" {
		return false
	}
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// SelectTestAccount picks the account the AI test replies as.
func (c *Controller) SelectTestAccount(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !hasAccount(c.accounts, id) {
		return &client.ValidationError{Msg: fmt.Sprintf("unknown account %q", id)}
	}
	c.testAccount = id
	return nil
}

// TestAI asks the backend for a sample reply using the draft's unsaved AI
// credentials.
func (c *Controller) TestAI(ctx context.Context) client.Result {
	return c.run(ActionTestAI, func() client.Result {
		c.mu.Lock()
		account := c.testAccount
		creds := c.draft.AICredentials()
		c.mu.Unlock()

		r, _ := c.gw.TestAIConnection(ctx, account, &creds)
		return r
	})
}

func (c *Controller) TestEmail(ctx context.Context, to string) client.Result {
	return c.run(ActionTestEmail, func() client.Result {
		r, _ := c.gw.TestEmail(ctx, to)
		return r
	})
}

// ChangePassword checks the form locally before anything is sent.
func (c *Controller) ChangePassword(ctx context.Context, current, next, confirm string) client.Result {
	if msg := validatePassword(current, next, confirm); msg != "" {
		return c.report(client.Result{Message: msg})
	}
	return c.run(ActionPassword, func() client.Result {
		r, _ := c.gw.ChangePassword(ctx, current, next)
		return r
	})
}

func validatePassword(current, next, confirm string) string {
	switch {
	case current == "":
		return "Enter the current password"
	case next == "":
		return "Enter a new password"
	case next != confirm:
		return "The new passwords do not match"
	case len(next) < minPasswordLength:
		return fmt.Sprintf("The new password must be at least %d characters", minPasswordLength)
	}
	return ""
}

// UploadDatabaseBackup restores the whole database from path. A file that is
// not *.db is rejected before confirm is asked. After a restore the draft is
// reloaded from the restored store.
func (c *Controller) UploadDatabaseBackup(ctx context.Context, path string, confirm Confirm) client.Result {
	if !client.IsDatabaseBackup(path) {
		return c.report(client.ResultOf(client.ErrInvalidBackupFile, "", ""))
	}
	if confirm != nil && !confirm("Restoring overwrites all current data. Continue?") {
		return c.report(client.Result{Message: "Restore cancelled"})
	}

	r := c.run(ActionRestore, func() client.Result {
		f, err := os.Open(path)
		if err != nil {
			return client.Result{Message: "Cannot open backup file: " + err.Error()}
		}
		defer f.Close()
		r, _ := c.gw.UploadDatabaseBackup(ctx, filepath.Base(path), f)
		return r
	})
	if r.Success {
		c.load(ctx)
	}
	return r
}

// DownloadDatabaseBackup saves a fresh database snapshot. When dest is a
// directory the server-suggested name is used inside it.
func (c *Controller) DownloadDatabaseBackup(ctx context.Context, dest string) client.Result {
	return c.run(ActionDownload, func() client.Result {
		return saveDownload(dest, "replydesk_backup_%s.db", func(f *os.File) (string, error) {
			return c.gw.DownloadDatabaseBackup(ctx, "", f)
		}, "Database backup saved to %s", "Failed to download database backup")
	})
}

// ExportUserBackup saves the caller's JSON export.
func (c *Controller) ExportUserBackup(ctx context.Context, dest string) client.Result {
	return c.run(ActionExport, func() client.Result {
		return saveDownload(dest, "replydesk_export_%s.json", func(f *os.File) (string, error) {
			return c.gw.ExportUserBackup(ctx, f)
		}, "Backup exported to %s", "Failed to export backup")
	})
}

// saveDownload streams into a temp file next to the target and renames it
// into place only once the transfer succeeded.
func saveDownload(dest, fallbackName string, fetch func(*os.File) (string, error), success, failure string) client.Result {
	if dest == "" {
		dest = "."
	}
	dir, target := dest, ""
	if info, err := os.Stat(dest); err != nil || !info.IsDir() {
		dir, target = filepath.Dir(dest), dest
	}

	tmp, err := os.CreateTemp(dir, ".replydesk-download-*")
	if err != nil {
		return client.Result{Message: failure + ": " + err.Error()}
	}
	defer os.Remove(tmp.Name())

	name, err := fetch(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return client.ResultOf(err, "", failure)
	}

	if target == "" {
		if name == "" {
			name = fmt.Sprintf(fallbackName, time.Now().Format("20060102_150405"))
		}
		target = filepath.Join(dir, name)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return client.Result{Message: failure + ": " + err.Error()}
	}
	return client.Result{Success: true, Message: fmt.Sprintf(success, target)}
}

// ImportUserBackup uploads a JSON export. The gateway rejects other files
// before sending.
func (c *Controller) ImportUserBackup(ctx context.Context, path string) client.Result {
	return c.run(ActionImport, func() client.Result {
		if !client.IsUserBackup(path) {
			return client.ResultOf(client.ErrInvalidUserBackup, "", "")
		}
		f, err := os.Open(path)
		if err != nil {
			return client.Result{Message: "Cannot open backup file: " + err.Error()}
		}
		defer f.Close()
		r, _ := c.gw.ImportUserBackup(ctx, filepath.Base(path), f)
		return r
	})
}

func (c *Controller) ReloadCache(ctx context.Context) client.Result {
	return c.run(ActionReload, func() client.Result {
		r, _ := c.gw.ReloadCache(ctx)
		return r
	})
}

// GenerateSecret puts a fresh reply secret into the draft. Nothing is stored
// until Save.
func (c *Controller) GenerateSecret() client.Result {
	secret, err := settings.GenerateSecret()
	if err != nil {
		return c.report(client.Result{Message: err.Error()})
	}
	c.mu.Lock()
	c.draft.QQReplySecretKey = settings.String(secret)
	c.mu.Unlock()
	return c.report(client.Result{Success: true, Message: "New secret generated; save settings to apply it"})
}

// CopySecret puts the draft's reply secret on the clipboard.
func (c *Controller) CopySecret(cb Clipboard) client.Result {
	return c.run(ActionCopySecret, func() client.Result {
		c.mu.Lock()
		secret, _ := c.draft.Get(settings.QQReplySecretKey)
		c.mu.Unlock()
		if secret == "" {
			return client.Result{Message: "No secret to copy"}
		}
		if err := cb.Copy(secret); err != nil {
			return client.Result{Message: "Copy failed: " + err.Error()}
		}
		return client.Result{Success: true, Message: "Secret copied to clipboard"}
	})
}

// ExportDraft writes the draft, secrets included, as indented JSON.
func (c *Controller) ExportDraft(path string) client.Result {
	draft := c.Draft()
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return c.report(client.Result{Message: "Failed to encode settings: " + err.Error()})
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return c.report(client.Result{Message: "Failed to write settings: " + err.Error()})
	}
	return c.report(client.Result{Success: true, Message: "Settings exported to " + path})
}

// ImportDraft replaces the whole draft with the contents of a JSON file.
func (c *Controller) ImportDraft(path string) client.Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return c.report(client.Result{Message: "Failed to read settings: " + err.Error()})
	}
	var next settings.SystemSettings
	if err := json.Unmarshal(data, &next); err != nil {
		return c.report(client.Result{Message: "Invalid settings file: " + err.Error()})
	}
	c.mu.Lock()
	c.draft = next
	c.mu.Unlock()
	return c.report(client.Result{Success: true, Message: "Settings imported; save to apply"})
}
