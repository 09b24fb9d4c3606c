package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	yes       key.Binding
	no        key.Binding
	record    key.Binding
	mixed     key.Binding
	play      key.Binding
	rename    key.Binding
	remove    key.Binding
	transpose key.Binding
	copy      key.Binding
	sync      key.Binding
	micUp     key.Binding
	micDown   key.Binding
	sysUp     key.Binding
	sysDown   key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		record:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record/stop")),
		mixed:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "record over base")),
		play:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		rename:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		remove:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
		transpose: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "transpose")),
		copy:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy sheet")),
		sync:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save clips")),
		micUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "mic gain")),
		micDown:   key.NewBinding(key.WithKeys("-")),
		sysUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("[/]", "base gain")),
		sysDown:   key.NewBinding(key.WithKeys("[")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.record, k.mixed, k.play, k.rename, k.remove},
		{k.transpose, k.copy, k.sync, k.micUp, k.sysUp},
		{k.back, k.quit},
	}
}
