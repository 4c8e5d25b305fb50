package tui

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/huangang/replydesk/internal/console"
	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

// backend is a minimal settings API: a string store plus two accounts.
type backend struct {
	mu    sync.Mutex
	store map[string]string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/system-settings":
		json.NewEncoder(w).Encode(b.store)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/system-settings/"):
		var body struct {
			Value string `json:"value"`
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		b.store[strings.TrimPrefix(r.URL.Path, "/api/system-settings/")] = body.Value
		io.WriteString(w, `{"success":true,"message":"Setting updated"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/accounts":
		io.WriteString(w, `[{"id":"shop-a","enabled":true},{"id":"shop-b","enabled":true}]`)
	default:
		http.NotFound(w, r)
	}
}

func newTestModel(t *testing.T) (Model, *backend, *[]string) {
	t.Helper()
	be := &backend{store: map[string]string{
		"ai_model":             "qwen-max",
		"smtp_password":        "hunter22",
		"custom_banner":        "hi",
		"smtp_use_tls":         "false",
		"smtp_server":          "smtp.example.com",
		"registration_enabled": "true",
	}}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	gw := client.New(srv.URL+"/api", client.WithHTTPClient(srv.Client()), client.WithToken("t"))
	ctl := console.NewController(gw, console.NotifierFunc(func(client.Result) {}))

	var copied []string
	clip := console.ClipboardFunc(func(s string) error {
		copied = append(copied, s)
		return nil
	})

	m := New(ctl, clip)
	m = apply(t, m, run(ctl.Load)())
	m = apply(t, m, run(ctl.LoadAccounts)())
	return m, be, &copied
}

func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "ctrl+u":
			msg = tea.KeyMsg{Type: tea.KeyCtrlU}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m = apply(t, m, msg)
	}
	return m
}

func (m Model) moveTo(t *testing.T, key string) Model {
	t.Helper()
	for i, k := range m.rows() {
		if k == key {
			m.cursor = i
			return m
		}
	}
	t.Fatalf("row %q not found", key)
	return m
}

func TestView_RendersDraft(t *testing.T) {
	m, _, _ := newTestModel(t)
	view := m.View()

	for _, want := range []string{"ready", "qwen-max", "smtp.example.com", "Other", "custom_banner", "AI test account: shop-a", "587"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "hunter22") {
		t.Error("secret rendered in clear")
	}

	m = press(t, m, "v")
	if !strings.Contains(m.View(), "hunter22") {
		t.Error("reveal did not show the secret")
	}
}

func TestToggleAndSave(t *testing.T) {
	m, be, _ := newTestModel(t)

	m = m.moveTo(t, settings.SMTPUseTLS)
	m = press(t, m, " ")
	draft := m.ctl.Draft()
	if v, _ := draft.Get(settings.SMTPUseTLS); v != "true" {
		t.Fatalf("smtp_use_tls = %q after toggle", v)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("save returned no command")
	}
	m = apply(t, m, cmd())
	if !m.status.Success {
		t.Fatalf("save status = %+v", m.status)
	}

	be.mu.Lock()
	defer be.mu.Unlock()
	if be.store["smtp_use_tls"] != "true" || be.store["smtp_port"] != "587" {
		t.Errorf("store = %v", be.store)
	}
}

func TestEditTextField(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = m.moveTo(t, settings.AIModel)
	m = press(t, m, "enter")
	if m.editing != settings.AIModel {
		t.Fatalf("editing = %q", m.editing)
	}
	m = press(t, m, "ctrl+u", "q", "w", "e", "n", "enter")
	if m.editing != "" {
		t.Error("editor still open")
	}
	draft := m.ctl.Draft()
	if v, _ := draft.Get(settings.AIModel); v != "qwen" {
		t.Errorf("ai_model = %q, want qwen", v)
	}

	m = m.moveTo(t, settings.SMTPPort)
	m = press(t, m, "enter", "ctrl+u", "x", "enter")
	if m.status.Success || m.editing != settings.SMTPPort {
		t.Errorf("invalid port accepted: status=%+v editing=%q", m.status, m.editing)
	}
	m = press(t, m, "esc")
	draft = m.ctl.Draft()
	if v, _ := draft.Get(settings.SMTPPort); v != "587" {
		t.Errorf("smtp_port = %q after cancel", v)
	}
}

func TestSecretAndAccountKeys(t *testing.T) {
	m, _, copied := newTestModel(t)

	m = press(t, m, "g")
	draft := m.ctl.Draft()
	secret, _ := draft.Get(settings.QQReplySecretKey)
	if len(secret) != 32 || !m.status.Success {
		t.Fatalf("secret=%q status=%+v", secret, m.status)
	}
	m = press(t, m, "y")
	if len(*copied) != 1 || (*copied)[0] != secret {
		t.Errorf("copied %v", *copied)
	}

	m = press(t, m, "a")
	if m.ctl.TestAccount() != "shop-b" {
		t.Errorf("test account = %q", m.ctl.TestAccount())
	}
	m = press(t, m, "a")
	if m.ctl.TestAccount() != "shop-a" {
		t.Errorf("test account did not wrap: %q", m.ctl.TestAccount())
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
