// Package tui is the interactive terminal form over console.Controller.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/huangang/replydesk/internal/console"
	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

type section struct {
	title string
	keys  []string
}

var sections = []section{
	{"Login", []string{settings.RegistrationEnabled, settings.ShowDefaultLoginInfo, settings.LoginCaptchaEnabled}},
	{"AI provider", []string{settings.AIAPIURL, settings.AIAPIKey, settings.AIModel}},
	{"Email (SMTP)", []string{
		settings.SMTPServer, settings.SMTPPort, settings.SMTPUser, settings.SMTPPassword,
		settings.SMTPFrom, settings.SMTPUseTLS, settings.SMTPUseSSL,
	}},
	{"Reply service", []string{settings.QQReplySecretKey}},
}

var labels = map[string]string{
	settings.RegistrationEnabled:  "Allow registration",
	settings.ShowDefaultLoginInfo: "Show default login",
	settings.LoginCaptchaEnabled:  "Login captcha",
	settings.AIAPIURL:             "API base URL",
	settings.AIAPIKey:             "API key",
	settings.AIModel:              "Model",
	settings.SMTPServer:           "Server",
	settings.SMTPPort:             "Port",
	settings.SMTPUser:             "User",
	settings.SMTPPassword:         "Password",
	settings.SMTPFrom:             "From address",
	settings.SMTPUseTLS:           "STARTTLS",
	settings.SMTPUseSSL:           "SSL",
	settings.QQReplySecretKey:     "Reply secret",
}

type styles struct {
	title    lipgloss.Style
	section  lipgloss.Style
	selected lipgloss.Style
	dim      lipgloss.Style
	ok       lipgloss.Style
	failed   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		section:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")).MarginTop(1),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		ok:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// resultMsg carries the outcome of an action run as a command.
type resultMsg struct {
	result client.Result
}

// Model is the bubbletea model of the settings form.
type Model struct {
	ctl  *console.Controller
	clip console.Clipboard
	keys KeyMap
	st   styles

	cursor  int
	editing string // key being edited, empty when browsing
	input   textinput.Model
	spinner spinner.Model
	reveal  bool

	status    client.Result
	hasStatus bool
	width     int
}

func New(ctl *console.Controller, clip console.Clipboard) Model {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 512

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctl:     ctl,
		clip:    clip,
		keys:    DefaultKeyMap,
		st:      defaultStyles(),
		input:   input,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(run(m.ctl.Load), run(m.ctl.LoadAccounts), m.spinner.Tick)
}

// run executes a controller action off the UI goroutine.
func run(action func(context.Context) client.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{result: action(context.Background())}
	}
}

// rows lists the keys in display order: the known keys by section, then any
// other keys the store holds.
func (m Model) rows() []string {
	var out []string
	for _, s := range sections {
		out = append(out, s.keys...)
	}
	draft := m.ctl.Draft()
	var extras []string
	for _, k := range draft.Keys() {
		if !settings.IsKnown(k) {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}

func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		m.input.Width = max(message.Width-32, 20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(message)
		return m, cmd

	case resultMsg:
		m.setStatus(message.result)
		return m, nil

	case tea.KeyMsg:
		if m.editing != "" {
			return m.updateEditor(message)
		}
		return m.updateForm(message)
	}
	return m, nil
}

func (m *Model) setStatus(r client.Result) {
	m.status = r
	m.hasStatus = true
}

func (m Model) updateEditor(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, m.keys.Cancel):
		m.closeEditor()
		return m, nil

	case message.Type == tea.KeyEnter:
		if err := m.ctl.Set(m.editing, m.input.Value()); err != nil {
			m.setStatus(client.Result{Message: err.Error()})
			return m, nil
		}
		m.closeEditor()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(message)
	return m, cmd
}

func (m *Model) closeEditor() {
	m.editing = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) updateForm(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()

	switch {
	case key.Matches(message, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(message, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(message, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}

	case key.Matches(message, m.keys.Edit):
		k := rows[m.cursor]
		if settings.TypeOf(k) == settings.KindBool {
			if err := m.ctl.Toggle(k); err != nil {
				m.setStatus(client.Result{Message: err.Error()})
			}
			return m, nil
		}
		draft := m.ctl.Draft()
		current, _ := draft.Get(k)
		m.editing = k
		m.input.SetValue(current)
		m.input.CursorEnd()
		m.input.EchoMode = textinput.EchoNormal
		if settings.IsSecret(k) && !m.reveal {
			m.input.EchoMode = textinput.EchoPassword
		}
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(message, m.keys.Reveal):
		m.reveal = !m.reveal

	case key.Matches(message, m.keys.Save):
		return m, run(m.ctl.Save)

	case key.Matches(message, m.keys.Reload):
		return m, tea.Batch(run(m.ctl.Load), run(m.ctl.LoadAccounts))

	case key.Matches(message, m.keys.TestAI):
		return m, run(m.ctl.TestAI)

	case key.Matches(message, m.keys.Account):
		m.nextAccount()

	case key.Matches(message, m.keys.Generate):
		m.setStatus(m.ctl.GenerateSecret())

	case key.Matches(message, m.keys.Copy):
		m.setStatus(m.ctl.CopySecret(m.clip))
	}
	return m, nil
}

func (m *Model) nextAccount() {
	accounts := m.ctl.Accounts()
	if len(accounts) == 0 {
		m.setStatus(client.Result{Message: "No accounts to test with"})
		return
	}
	next := 0
	for i, a := range accounts {
		if a.ID == m.ctl.TestAccount() {
			next = (i + 1) % len(accounts)
			break
		}
	}
	if err := m.ctl.SelectTestAccount(accounts[next].ID); err != nil {
		m.setStatus(client.Result{Message: err.Error()})
	}
}

func (m Model) View() string {
	var b strings.Builder

	header := m.st.title.Render("replydesk · system settings") + "  " + m.st.dim.Render(m.ctl.State().String())
	if m.ctl.Active() {
		header += " " + m.spinner.View()
	}
	b.WriteString(header + "\n")

	draft := m.ctl.Draft()
	current := ""
	for i, k := range m.rows() {
		if title := sectionOf(k); title != current {
			current = title
			b.WriteString(m.st.section.Render(title) + "\n")
		}
		b.WriteString(m.truncate(m.renderRow(i, k, &draft)) + "\n")
	}

	account := m.ctl.TestAccount()
	if account == "" {
		account = m.st.dim.Render("(none)")
	}
	b.WriteString("\n" + m.st.dim.Render("AI test account: ") + account + "\n")

	if m.hasStatus {
		style := m.st.failed
		if m.status.Success {
			style = m.st.ok
		}
		b.WriteString(m.truncate(style.Render(m.status.Message)) + "\n")
	}

	b.WriteString("\n" + m.truncate(m.helpLine()))
	return b.String()
}

func (m Model) renderRow(i int, k string, draft *settings.SystemSettings) string {
	label := labels[k]
	if label == "" {
		label = k
	}
	marker := "  "
	if i == m.cursor {
		marker = m.st.selected.Render("› ")
		label = m.st.selected.Render(fmt.Sprintf("%-20s", label))
	} else {
		label = fmt.Sprintf("%-20s", label)
	}

	if k == m.editing {
		return marker + label + m.input.View()
	}
	return marker + label + m.renderValue(k, draft)
}

func (m Model) renderValue(k string, draft *settings.SystemSettings) string {
	v, ok := draft.Get(k)
	switch {
	case !ok:
		return m.st.dim.Render("(unset)")
	case settings.TypeOf(k) == settings.KindBool:
		if v == "true" {
			return "[x] on"
		}
		return "[ ] off"
	case v == "":
		return m.st.dim.Render("(empty)")
	case settings.IsSecret(k) && !m.reveal:
		return strings.Repeat("•", min(len(v), 12))
	}
	return v
}

func sectionOf(k string) string {
	for _, s := range sections {
		for _, sk := range s.keys {
			if sk == k {
				return s.title
			}
		}
	}
	return "Other"
}

func (m Model) helpLine() string {
	var parts []string
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.st.dim.Render(strings.Join(parts, " · "))
}

func (m Model) truncate(line string) string {
	if m.width <= 0 {
		return line
	}
	return ansi.Truncate(line, m.width, "…")
}

// Run starts the form on the terminal and blocks until the operator quits.
func Run(ctl *console.Controller, clip console.Clipboard) error {
	_, err := tea.NewProgram(New(ctl, clip), tea.WithAltScreen()).Run()
	return err
}
