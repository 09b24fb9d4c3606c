package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/models"
)

// Events turns capture engine callbacks into TUI messages.
//
// Callbacks never block the engine: when the buffer is full the update is dropped. Clip and state
// messages carry snapshots, so the model also rereads the engine when it handles one.
type Events struct {
	ch chan tea.Msg
}

// NewEvents creates an event bridge with room for size pending messages.
func NewEvents(size int) *Events {
	if size <= 0 {
		size = 64
	}
	return &Events{ch: make(chan tea.Msg, size)}
}

// Bind returns opts with the engine callbacks routed through e.
func (e *Events) Bind(opts capture.Options) capture.Options {
	opts.OnClipsChanged = func(clips []models.AudioClip) { e.send(clipsChangedMsg(clips)) }
	opts.OnStateChanged = func(state capture.State) { e.send(stateChangedMsg(state)) }
	opts.OnPlaybackChanged = func(id string) { e.send(playbackChangedMsg(id)) }
	opts.OnError = func(err error) { e.send(engineErrorMsg(err)) }
	return opts
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

// Wait returns a command that delivers the next engine message.
func (e *Events) Wait() tea.Cmd {
	return func() tea.Msg {
		return <-e.ch
	}
}
