package console

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

// stubGateway serves canned answers and records what the controller sent.
type stubGateway struct {
	mu sync.Mutex

	stored  settings.SystemSettings
	loadErr error

	saved    []settings.SystemSettings
	saveErr  error
	saveHook func()

	accounts []client.Account

	aiAccount string
	aiCreds   settings.AICredentials

	passwords []string
	uploads   []string
	imports   []string
	download  string
	reloads   int
}

func (g *stubGateway) LoadSystemSettings(context.Context) (settings.SystemSettings, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return settings.SystemSettings{}, g.loadErr
	}
	return g.stored.Clone(), nil
}

func (g *stubGateway) SaveSystemSettings(_ context.Context, patch settings.SystemSettings) (*client.SaveResult, error) {
	if g.saveHook != nil {
		g.saveHook()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saved = append(g.saved, patch)
	if g.saveErr != nil {
		return &client.SaveResult{Result: client.Result{Message: "Failed to save settings (smtp_port)"}}, g.saveErr
	}
	return &client.SaveResult{Result: client.Result{Success: true, Message: "Settings saved"}, Applied: patch.Keys()}, nil
}

func (g *stubGateway) ListAccounts(context.Context) ([]client.Account, error) {
	return g.accounts, nil
}

func (g *stubGateway) TestAIConnection(_ context.Context, id string, draft *settings.AICredentials) (client.Result, error) {
	g.aiAccount, g.aiCreds = id, *draft
	if id == "" {
		return client.Result{Message: client.ErrNoTestAccount.Msg}, client.ErrNoTestAccount
	}
	return client.Result{Success: true, Message: "AI reply: hello"}, nil
}

func (g *stubGateway) TestEmail(_ context.Context, to string) (client.Result, error) {
	return client.Result{Success: true, Message: "Test email sent to " + to}, nil
}

func (g *stubGateway) ChangePassword(_ context.Context, current, next string) (client.Result, error) {
	g.passwords = append(g.passwords, current+"->"+next)
	return client.Result{Success: true, Message: "Password changed"}, nil
}

func (g *stubGateway) UploadDatabaseBackup(_ context.Context, name string, r io.Reader) (client.Result, error) {
	data, _ := io.ReadAll(r)
	g.uploads = append(g.uploads, name+":"+string(data))
	return client.Result{Success: true, Message: "Database restored"}, nil
}

func (g *stubGateway) DownloadDatabaseBackup(_ context.Context, _ string, w io.Writer) (string, error) {
	_, err := io.WriteString(w, "SQLite format 3\x00")
	return g.download, err
}

func (g *stubGateway) ExportUserBackup(_ context.Context, w io.Writer) (string, error) {
	_, err := io.WriteString(w, `{"version":"1.0"}`)
	return "replydesk_admin_20260101_000000.json", err
}

func (g *stubGateway) ImportUserBackup(_ context.Context, name string, _ io.Reader) (client.Result, error) {
	g.imports = append(g.imports, name)
	return client.Result{Success: true, Message: "Backup imported"}, nil
}

func (g *stubGateway) ReloadCache(context.Context) (client.Result, error) {
	g.reloads++
	return client.Result{Success: true, Message: "Cache reloaded"}, nil
}

type recorder struct {
	mu      sync.Mutex
	results []client.Result
}

func (r *recorder) Notify(res client.Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *recorder) last() client.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return client.Result{}
	}
	return r.results[len(r.results)-1]
}

func newTestController(t *testing.T, gw *stubGateway) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewController(gw, rec), rec
}

func TestLoad_AppliesDefaults(t *testing.T) {
	gw := &stubGateway{stored: settings.SystemSettings{
		AIModel:    settings.String("qwen-max"),
		SMTPServer: settings.String("smtp.example.com"),
	}}
	c, rec := newTestController(t, gw)

	if c.State() != Unloaded {
		t.Fatalf("initial state = %v", c.State())
	}
	if r := c.Load(context.Background()); !r.Success {
		t.Fatalf("Load: %s", r.Message)
	}
	if c.State() != Ready {
		t.Errorf("state = %v, want ready", c.State())
	}
	if rec.last().Message != "Settings loaded" {
		t.Errorf("notified %q", rec.last().Message)
	}

	d := c.Draft()
	tests := []struct {
		key, want string
	}{
		{settings.AIModel, "qwen-max"},
		{settings.SMTPServer, "smtp.example.com"},
		{settings.SMTPPort, "587"},
		{settings.SMTPUseTLS, "true"},
		{settings.LoginCaptchaEnabled, "false"},
	}
	for _, tt := range tests {
		if got, _ := d.Get(tt.key); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoad_FailureReturnsToUnloaded(t *testing.T) {
	gw := &stubGateway{loadErr: &client.APIError{StatusCode: 403, Message: "Admin access required"}}
	c, _ := newTestController(t, gw)

	r := c.Load(context.Background())
	if r.Success || r.Message != "Admin access required" {
		t.Errorf("Load = %+v", r)
	}
	if c.State() != Unloaded {
		t.Errorf("state = %v, want unloaded", c.State())
	}
	if r := c.Save(context.Background()); r.Success {
		t.Error("Save succeeded while unloaded")
	}
	if len(gw.saved) != 0 {
		t.Error("save reached the gateway")
	}
}

func TestSave_SendsSnapshot(t *testing.T) {
	gw := &stubGateway{}
	c, _ := newTestController(t, gw)
	c.Load(context.Background())

	if err := c.Set(settings.SMTPPort, "465"); err != nil {
		t.Fatal(err)
	}
	// an edit racing the save lands in the draft only
	gw.saveHook = func() {
		if err := c.Set(settings.AIModel, "edited-during-save"); err != nil {
			t.Error(err)
		}
	}

	if r := c.Save(context.Background()); !r.Success {
		t.Fatalf("Save: %s", r.Message)
	}
	if c.State() != Ready {
		t.Errorf("state after save = %v", c.State())
	}
	sent := gw.saved[0]
	if v, _ := sent.Get(settings.SMTPPort); v != "465" {
		t.Errorf("sent smtp_port = %q", v)
	}
	if v, _ := sent.Get(settings.AIModel); v != "qwen-plus" {
		t.Errorf("sent ai_model = %q, want the snapshot value", v)
	}
	d := c.Draft()
	if v, _ := d.Get(settings.AIModel); v != "edited-during-save" {
		t.Errorf("draft ai_model = %q", v)
	}
}

func TestSave_PartialFailure(t *testing.T) {
	gw := &stubGateway{saveErr: errors.New("smtp_port: boom")}
	c, _ := newTestController(t, gw)
	c.Load(context.Background())

	r := c.Save(context.Background())
	if r.Success || !strings.Contains(r.Message, "smtp_port") {
		t.Errorf("Save = %+v", r)
	}
	if c.State() != Ready {
		t.Errorf("state = %v, want ready after a failed save", c.State())
	}
}

func TestSetters(t *testing.T) {
	c, _ := newTestController(t, &stubGateway{})

	if err := c.Set(settings.SMTPPort, "abc"); err == nil {
		t.Error("non-numeric smtp_port accepted")
	}
	if err := c.SetBool(settings.AIModel, true); err == nil {
		t.Error("SetBool on a string key accepted")
	}
	if err := c.Toggle(settings.RegistrationEnabled); err != nil {
		t.Fatal(err)
	}
	d := c.Draft()
	if v, _ := d.Get(settings.RegistrationEnabled); v != "true" {
		t.Errorf("toggled undefined key = %q, want true", v)
	}
	c.Toggle(settings.RegistrationEnabled)
	d = c.Draft()
	if v, _ := d.Get(settings.RegistrationEnabled); v != "false" {
		t.Errorf("second toggle = %q, want false", v)
	}
}

func TestAccountsAndTestAI(t *testing.T) {
	gw := &stubGateway{accounts: []client.Account{{ID: "shop-a"}, {ID: "shop-b"}}}
	c, _ := newTestController(t, gw)

	if r := c.TestAI(context.Background()); r.Success {
		t.Error("TestAI succeeded without an account")
	}

	c.LoadAccounts(context.Background())
	if c.TestAccount() != "shop-a" {
		t.Errorf("auto-selected %q, want shop-a", c.TestAccount())
	}
	if err := c.SelectTestAccount("nope"); err == nil {
		t.Error("unknown account selected")
	}
	if err := c.SelectTestAccount("shop-b"); err != nil {
		t.Fatal(err)
	}
	c.LoadAccounts(context.Background())
	if c.TestAccount() != "shop-b" {
		t.Errorf("reload changed selection to %q", c.TestAccount())
	}

	c.Set(settings.AIAPIKey, "sk-draft")
	c.Set(settings.AIAPIURL, "https://llm.example.com/v1")
	c.Set(settings.AIModel, "draft-model")
	if r := c.TestAI(context.Background()); !r.Success {
		t.Fatalf("TestAI: %s", r.Message)
	}
	want := settings.AICredentials{APIKey: "sk-draft", BaseURL: "https://llm.example.com/v1", Model: "draft-model"}
	if gw.aiAccount != "shop-b" || gw.aiCreds != want {
		t.Errorf("TestAI sent %q %+v", gw.aiAccount, gw.aiCreds)
	}
	if c.Busy(ActionTestAI) {
		t.Error("busy flag left set")
	}
}

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name                   string
		current, next, confirm string
		wantOK                 bool
	}{
		{"missing current", "", "newpass", "newpass", false},
		{"missing new", "old", "", "", false},
		{"mismatch", "old", "newpass", "newpasS", false},
		{"too short", "old", "abc", "abc", false},
		{"ok", "old", "newpass", "newpass", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{}
			c, _ := newTestController(t, gw)
			r := c.ChangePassword(context.Background(), tt.current, tt.next, tt.confirm)
			if r.Success != tt.wantOK {
				t.Errorf("ChangePassword = %+v", r)
			}
			if sent := len(gw.passwords) > 0; sent != tt.wantOK {
				t.Errorf("request sent = %v", sent)
			}
		})
	}
}

func TestUploadDatabaseBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshot.db")
	os.WriteFile(dbPath, []byte("data"), 0o600)
	txtPath := filepath.Join(dir, "notes.txt")
	os.WriteFile(txtPath, []byte("x"), 0o600)

	t.Run("extension checked before confirm", func(t *testing.T) {
		gw := &stubGateway{}
		c, _ := newTestController(t, gw)
		asked := false
		r := c.UploadDatabaseBackup(context.Background(), txtPath, func(string) bool { asked = true; return true })
		if r.Success || asked || len(gw.uploads) != 0 {
			t.Errorf("result=%+v asked=%v uploads=%v", r, asked, gw.uploads)
		}
	})

	t.Run("extension match is case-sensitive", func(t *testing.T) {
		upper := filepath.Join(dir, "BACKUP.DB")
		os.WriteFile(upper, []byte("data"), 0o600)
		gw := &stubGateway{}
		c, _ := newTestController(t, gw)
		asked := false
		r := c.UploadDatabaseBackup(context.Background(), upper, func(string) bool { asked = true; return true })
		if r.Success || asked || len(gw.uploads) != 0 {
			t.Errorf("result=%+v asked=%v uploads=%v", r, asked, gw.uploads)
		}
	})

	t.Run("declined", func(t *testing.T) {
		gw := &stubGateway{}
		c, _ := newTestController(t, gw)
		r := c.UploadDatabaseBackup(context.Background(), dbPath, func(string) bool { return false })
		if r.Success || r.Message != "Restore cancelled" || len(gw.uploads) != 0 {
			t.Errorf("result=%+v uploads=%v", r, gw.uploads)
		}
	})

	t.Run("restored and reloaded", func(t *testing.T) {
		gw := &stubGateway{stored: settings.SystemSettings{AIModel: settings.String("restored")}}
		c, _ := newTestController(t, gw)
		r := c.UploadDatabaseBackup(context.Background(), dbPath, func(string) bool { return true })
		if !r.Success {
			t.Fatalf("upload: %s", r.Message)
		}
		if len(gw.uploads) != 1 || gw.uploads[0] != "snapshot.db:data" {
			t.Errorf("uploads = %v", gw.uploads)
		}
		d := c.Draft()
		if v, _ := d.Get(settings.AIModel); v != "restored" || c.State() != Ready {
			t.Errorf("draft not reloaded: ai_model=%q state=%v", v, c.State())
		}
	})
}

func TestDownloads(t *testing.T) {
	dir := t.TempDir()

	gw := &stubGateway{download: "replydesk_manual_20260101_000000.db"}
	c, _ := newTestController(t, gw)

	r := c.DownloadDatabaseBackup(context.Background(), dir)
	if !r.Success {
		t.Fatalf("download: %s", r.Message)
	}
	if _, err := os.Stat(filepath.Join(dir, gw.download)); err != nil {
		t.Errorf("server-named file missing: %v", err)
	}

	explicit := filepath.Join(dir, "mine.db")
	if r := c.DownloadDatabaseBackup(context.Background(), explicit); !r.Success {
		t.Fatalf("download to file: %s", r.Message)
	}
	data, _ := os.ReadFile(explicit)
	if !strings.HasPrefix(string(data), "SQLite format 3") {
		t.Errorf("content = %q", data)
	}

	if r := c.ExportUserBackup(context.Background(), dir); !r.Success {
		t.Fatalf("export: %s", r.Message)
	}
	if _, err := os.Stat(filepath.Join(dir, "replydesk_admin_20260101_000000.json")); err != nil {
		t.Error(err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".replydesk-download-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestImportUserBackup(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "export.json")
	os.WriteFile(good, []byte(`{}`), 0o600)

	gw := &stubGateway{}
	c, _ := newTestController(t, gw)

	if r := c.ImportUserBackup(context.Background(), filepath.Join(dir, "export.csv")); r.Success {
		t.Error("csv accepted")
	}
	if r := c.ImportUserBackup(context.Background(), filepath.Join(dir, "EXPORT.JSON")); r.Success {
		t.Error("upper-case .JSON accepted")
	}
	if r := c.ImportUserBackup(context.Background(), good); !r.Success {
		t.Fatalf("import: %s", r.Message)
	}
	if len(gw.imports) != 1 || gw.imports[0] != "export.json" {
		t.Errorf("imports = %v", gw.imports)
	}
}

func TestSecret(t *testing.T) {
	c, rec := newTestController(t, &stubGateway{})

	var copied string
	cb := ClipboardFunc(func(s string) error { copied = s; return nil })

	if r := c.CopySecret(cb); r.Success {
		t.Error("copied an empty secret")
	}

	c.GenerateSecret()
	if !strings.Contains(rec.last().Message, "save") {
		t.Errorf("generate message %q does not remind to save", rec.last().Message)
	}
	d := c.Draft()
	secret, _ := d.Get(settings.QQReplySecretKey)
	if len(secret) != 32 {
		t.Fatalf("secret %q is not 32 hex chars", secret)
	}

	if r := c.CopySecret(cb); !r.Success || copied != secret {
		t.Errorf("copy = %+v, clipboard %q", r, copied)
	}
}

func TestOSC52(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm-256color")
	var buf strings.Builder
	if err := (OSC52{Out: &buf}).Copy("abc"); err != nil {
		t.Fatal(err)
	}
	// base64("abc") = YWJj
	if got := buf.String(); !strings.HasPrefix(got, "\x1b]52;c;YWJj") {
		t.Errorf("sequence = %q", got)
	}
}

func TestDraftExportImport(t *testing.T) {
	gw := &stubGateway{}
	c, _ := newTestController(t, gw)
	c.Load(context.Background())
	c.Set(settings.SMTPServer, "smtp.example.com")
	c.Set("custom_banner", "hello")

	path := filepath.Join(t.TempDir(), "draft.json")
	if r := c.ExportDraft(path); !r.Success {
		t.Fatalf("export: %s", r.Message)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}

	other, _ := newTestController(t, gw)
	other.Set(settings.AIAPIKey, "sk-should-vanish")
	if r := other.ImportDraft(path); !r.Success {
		t.Fatalf("import: %s", r.Message)
	}
	d := other.Draft()
	if v, _ := d.Get(settings.SMTPServer); v != "smtp.example.com" {
		t.Errorf("smtp_server = %q", v)
	}
	if v, _ := d.Get("custom_banner"); v != "hello" {
		t.Errorf("extra key = %q", v)
	}
	if _, ok := d.Get(settings.AIAPIKey); ok {
		t.Error("import merged instead of replacing")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o600)
	if r := other.ImportDraft(bad); r.Success {
		t.Error("invalid json accepted")
	}
}

func TestBusyRejectsReentry(t *testing.T) {
	c, _ := newTestController(t, &stubGateway{})
	if !c.begin(ActionReload) {
		t.Fatal("begin failed")
	}
	if r := c.ReloadCache(context.Background()); r.Success || !strings.Contains(r.Message, "already running") {
		t.Errorf("reentrant reload = %+v", r)
	}
	c.end(ActionReload)
	if r := c.ReloadCache(context.Background()); !r.Success {
		t.Errorf("reload = %+v", r)
	}
}
