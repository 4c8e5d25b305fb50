// Package console holds the settings form: the draft being edited, its load
// and save lifecycle, and the auxiliary admin actions around it.
//
// The Controller is UI-agnostic. Every action returns a client.Result and
// reports it to a Notifier; the terminal form and the CLI are both thin
// renderers over it.
package console

import (
	"context"
	"sync"

	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/huangang/replydesk/pkg/settings"
)

type State int

const (
	Unloaded State = iota
	Loading
	Ready
	Saving
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Saving:
		return "saving"
	default:
		return "unloaded"
	}
}

// Action names an auxiliary operation guarded by its own busy flag.
type Action string

const (
	ActionTestAI     Action = "test-ai"
	ActionTestEmail  Action = "test-email"
	ActionPassword   Action = "change-password"
	ActionRestore    Action = "restore-backup"
	ActionDownload   Action = "download-backup"
	ActionExport     Action = "export-user-backup"
	ActionImport     Action = "import-user-backup"
	ActionReload     Action = "reload-cache"
	ActionAccounts   Action = "load-accounts"
	ActionCopySecret Action = "copy-secret"
)

// Notifier receives the outcome of every action.
type Notifier interface {
	Notify(client.Result)
}

type NotifierFunc func(client.Result)

func (f NotifierFunc) Notify(r client.Result) { f(r) }

// LogNotifier writes results to the process logger.
type LogNotifier struct{}

func (LogNotifier) Notify(r client.Result) {
	if r.Success {
		logger.Info().Msg(r.Message)
		return
	}
	logger.Warn().Msg(r.Message)
}

// Confirm asks the operator to approve a destructive step.
type Confirm func(prompt string) bool

// Controller owns the draft. It is safe for concurrent use: the terminal form
// runs actions as background commands while rendering.
type Controller struct {
	gw     Gateway
	notify Notifier

	mu          sync.Mutex
	state       State
	draft       settings.SystemSettings
	accounts    []client.Account
	testAccount string
	busy        map[Action]bool
}

func NewController(gw Gateway, notify Notifier) *Controller {
	if notify == nil {
		notify = LogNotifier{}
	}
	return &Controller{
		gw:     gw,
		notify: notify,
		busy:   make(map[Action]bool),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the settings being edited.
func (c *Controller) Draft() settings.SystemSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

func (c *Controller) Accounts() []client.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]client.Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

func (c *Controller) TestAccount() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.testAccount
}

func (c *Controller) Busy(a Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[a]
}

// Active reports whether a load, a save or any auxiliary action is in flight.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Loading || c.state == Saving || len(c.busy) > 0
}

func (c *Controller) report(r client.Result) client.Result {
	c.notify.Notify(r)
	return r
}

// begin marks a as running; false means it already is.
func (c *Controller) begin(a Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy[a] {
		return false
	}
	c.busy[a] = true
	return true
}

func (c *Controller) end(a Action) {
	c.mu.Lock()
	delete(c.busy, a)
	c.mu.Unlock()
}

// run executes fn under a's busy flag and reports its result.
func (c *Controller) run(a Action, fn func() client.Result) client.Result {
	if !c.begin(a) {
		return c.report(client.Result{Message: string(a) + " is already running"})
	}
	defer c.end(a)
	r := fn()
	if !r.Success {
		logger.Debug().Str("action", string(a)).Str("message", r.Message).Msg("action failed")
	}
	return c.report(r)
}

// Load replaces the draft with the stored settings, filling UI defaults for
// keys the store does not have.
func (c *Controller) Load(ctx context.Context) client.Result {
	return c.report(c.load(ctx))
}

func (c *Controller) load(ctx context.Context) client.Result {
	c.mu.Lock()
	if c.state == Loading || c.state == Saving {
		st := c.state
		c.mu.Unlock()
		return client.Result{Message: "cannot load while " + st.String()}
	}
	c.state = Loading
	c.mu.Unlock()

	loaded, err := c.gw.LoadSystemSettings(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Unloaded
		logger.Warn().Err(err).Msg("load system settings")
		return client.ResultOf(err, "", "Failed to load system settings")
	}
	c.draft = loaded.WithDefaults()
	c.state = Ready
	return client.Result{Success: true, Message: "Settings loaded"}
}

// Save writes a snapshot of the draft, one request per defined key. Edits
// made while the save is in flight stay in the draft and are not sent.
func (c *Controller) Save(ctx context.Context) client.Result {
	c.mu.Lock()
	if c.state != Ready {
		st := c.state
		c.mu.Unlock()
		return c.report(client.Result{Message: "cannot save while " + st.String()})
	}
	c.state = Saving
	snapshot := c.draft.Clone()
	c.mu.Unlock()

	res, err := c.gw.SaveSystemSettings(ctx, snapshot)

	c.mu.Lock()
	c.state = Ready
	c.mu.Unlock()

	if res == nil {
		return c.report(client.ResultOf(err, "Settings saved", "Failed to save settings"))
	}
	if err != nil {
		logger.Warn().Err(err).Strs("applied", res.Applied).Msg("save system settings")
	}
	return c.report(res.Result)
}

// Set parses raw by the key's type and stores it in the draft.
func (c *Controller) Set(key, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Set(key, raw)
}

func (c *Controller) SetBool(key string, v bool) error {
	if settings.TypeOf(key) != settings.KindBool {
		return &client.ValidationError{Msg: key + " is not a boolean setting"}
	}
	return c.Set(key, boolString(v))
}

// Toggle flips a boolean key; an undefined key becomes true.
func (c *Controller) Toggle(key string) error {
	c.mu.Lock()
	cur, _ := c.draft.Get(key)
	c.mu.Unlock()
	return c.SetBool(key, cur != "true")
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
