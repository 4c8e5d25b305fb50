package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the settings form.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding // Toggle a boolean or open the editor on a text field.
	Cancel key.Binding
	Reveal key.Binding // Show or mask secret values.

	Save     key.Binding
	Reload   key.Binding
	Generate key.Binding
	Copy     key.Binding
	TestAI   key.Binding
	Account  key.Binding // Cycle the account used by the AI test.

	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Edit: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "edit/toggle"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Reveal: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "reveal"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "save"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Generate: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "new secret"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy secret"),
	),
	TestAI: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "test AI"),
	),
	Account: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "test account"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Edit, k.Save, k.Reload, k.TestAI, k.Account, k.Generate, k.Copy, k.Reveal, k.Quit}
}
