package console

import (
	"context"
	"io"

	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

// Gateway is the part of *client.Client the form drives.
type Gateway interface {
	LoadSystemSettings(ctx context.Context) (settings.SystemSettings, error)
	SaveSystemSettings(ctx context.Context, patch settings.SystemSettings) (*client.SaveResult, error)
	ListAccounts(ctx context.Context) ([]client.Account, error)
	TestAIConnection(ctx context.Context, accountID string, draft *settings.AICredentials) (client.Result, error)
	TestEmail(ctx context.Context, to string) (client.Result, error)
	ChangePassword(ctx context.Context, current, next string) (client.Result, error)
	UploadDatabaseBackup(ctx context.Context, name string, r io.Reader) (client.Result, error)
	DownloadDatabaseBackup(ctx context.Context, filename string, w io.Writer) (string, error)
	ExportUserBackup(ctx context.Context, w io.Writer) (string, error)
	ImportUserBackup(ctx context.Context, name string, r io.Reader) (client.Result, error)
	ReloadCache(ctx context.Context) (client.Result, error)
}

var _ Gateway = (*client.Client)(nil)
