package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDraftsLoaded MsgKind = iota
	MsgDraftOpened
	MsgClipsChanged
	MsgStateChanged
	MsgPlaybackChanged
	MsgEngineError
	MsgProgressUpdate
	MsgSyncComplete
	MsgTransposed
)

// Kind reports which member of the union m is.
func (m Msg) Kind() MsgKind { return m.kind }

type draftsLoaded struct {
	drafts []*models.Draft
	err    error
}

type draftOpened struct {
	draft *models.Draft
	clips []models.AudioClip
	err   error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

type transposed struct {
	result *tasks.TransposeResult
	err    error
}

// draftsLoadedMsg is the constructor for [MsgDraftsLoaded]
func draftsLoadedMsg(drafts []*models.Draft, err error) Msg {
	return Msg{kind: MsgDraftsLoaded, data: draftsLoaded{drafts, err}}
}

// draftOpenedMsg is the constructor for [MsgDraftOpened]
func draftOpenedMsg(draft *models.Draft, clips []models.AudioClip, err error) Msg {
	return Msg{kind: MsgDraftOpened, data: draftOpened{draft, clips, err}}
}

// clipsChangedMsg is the constructor for [MsgClipsChanged]
func clipsChangedMsg(clips []models.AudioClip) Msg {
	return Msg{kind: MsgClipsChanged, data: clips}
}

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg(state capture.State) Msg {
	return Msg{kind: MsgStateChanged, data: state}
}

// playbackChangedMsg is the constructor for [MsgPlaybackChanged]
func playbackChangedMsg(id string) Msg {
	return Msg{kind: MsgPlaybackChanged, data: id}
}

// engineErrorMsg is the constructor for [MsgEngineError]
func engineErrorMsg(err error) Msg {
	return Msg{kind: MsgEngineError, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}

// transposedMsg is the constructor for [MsgTransposed]
func transposedMsg(result *tasks.TransposeResult, err error) Msg {
	return Msg{kind: MsgTransposed, data: transposed{result, err}}
}
