package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

func (c *Client) ListBackups(ctx context.Context) (*BackupList, error) {
	var out BackupList
	resp, err := c.request(ctx).SetResult(&out).Get("/admin/backup/list")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// DatabaseBackupURL is a browser-openable link; the token rides in the query.
func (c *Client) DatabaseBackupURL() string {
	return c.baseURL + "/admin/backup/download?token=" + url.QueryEscape(c.token)
}

// UserBackupExportURL is the per-user export link.
func (c *Client) UserBackupExportURL() string {
	return c.baseURL + "/backup/export?token=" + url.QueryEscape(c.token)
}

// DownloadDatabaseBackup streams a fresh database snapshot, or the stored
// backup named filename, into w. It returns the server-suggested file name.
func (c *Client) DownloadDatabaseBackup(ctx context.Context, filename string, w io.Writer) (string, error) {
	r := c.request(ctx)
	if filename != "" {
		r.SetQueryParam("filename", filename)
	}
	return download(r.SetDoNotParseResponse(true), "/admin/backup/download", w)
}

// ExportUserBackup streams the caller's JSON export into w.
func (c *Client) ExportUserBackup(ctx context.Context, w io.Writer) (string, error) {
	return download(c.request(ctx).SetDoNotParseResponse(true), "/backup/export", w)
}

func download(r *resty.Request, path string, w io.Writer) (string, error) {
	resp, err := r.Get(path)
	if err != nil {
		return "", err
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		data, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return "", &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(data)}
	}
	if _, err := io.Copy(w, body); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}
	return attachmentName(resp.Header().Get("Content-Disposition")), nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return filepath.Base(params["filename"])
}

// IsDatabaseBackup reports whether name may be uploaded as a restore file.
// The match is case-sensitive.
func IsDatabaseBackup(name string) bool { return strings.HasSuffix(name, ".db") }

// IsUserBackup reports whether name may be imported as a user export.
func IsUserBackup(name string) bool { return strings.HasSuffix(name, ".json") }

// UploadDatabaseBackup restores the database from a SQLite file. Anything
// not named *.db is rejected before a request is made.
func (c *Client) UploadDatabaseBackup(ctx context.Context, name string, r io.Reader) (Result, error) {
	if !IsDatabaseBackup(name) {
		return failed(ErrInvalidBackupFile.Msg), ErrInvalidBackupFile
	}
	resp, err := c.request(ctx).
		SetFileReader("backup_file", filepath.Base(name), r).
		Post("/admin/backup/upload")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Database restored", "Failed to restore database")
}

// ImportUserBackup imports a JSON export. Anything not named *.json is
// rejected before a request is made.
func (c *Client) ImportUserBackup(ctx context.Context, name string, r io.Reader) (Result, error) {
	if !IsUserBackup(name) {
		return failed(ErrInvalidUserBackup.Msg), ErrInvalidUserBackup
	}
	resp, err := c.request(ctx).
		SetFileReader("file", filepath.Base(name), r).
		Post("/backup/import")
	msg, err := mutate(resp, err)
	return outcome(msg, err, "Backup imported", "Failed to import backup")
}
