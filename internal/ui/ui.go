package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DraftListView ViewState = iota
	StudioView
	RenameView
	KeyPickerView
	SyncView
	ConfirmView
)

// DraftSource lists stored drafts.
type DraftSource interface {
	List(criteria map[string]any) ([]*models.Draft, error)
}

// ClipSource lists the stored clips of a draft.
type ClipSource interface {
	ListByDraft(draftID string) ([]*models.PersistedClip, error)
}

// Options wires the TUI to the rest of the application. Engine must be built with Events.Bind.
type Options struct {
	Drafts DraftSource
	Clips  ClipSource
	Engine *capture.Engine
	Events *Events
	Sync   *tasks.ClipSync
	Editor *tasks.DraftEngine
	Copy   func(text string) error // Defaults to the system clipboard
}

// afterSync is what the studio does once a confirmation-triggered sync succeeds.
type afterSync int

const (
	stay afterSync = iota
	leaveDraft
	quitApp
)

// gainStep is how much one key press changes an input gain.
const gainStep = 0.1

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	drafts       DraftSource
	clips        ClipSource
	engine       *capture.Engine
	events       *Events
	syncer       *tasks.ClipSync
	editor       *tasks.DraftEngine
	copy         func(string) error
	width        int
	height       int
	draftList    list.Model
	clipList     list.Model
	keyList      list.Model
	input        textinput.Model
	draft        *models.Draft
	dirty        bool
	then         afterSync
	status       string
	progressChan chan tasks.ProgressUpdate
	syncDone     chan Msg
	progress     tasks.ProgressUpdate
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.Events == nil {
		opts.Events = NewEvents(0)
	}

	draftList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	draftList.Title = "Drafts"

	clipList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	clipList.Title = "Clips"
	clipList.SetFilteringEnabled(false)
	clipList.SetShowHelp(false)

	keys := make([]list.Item, 0, 12)
	for _, k := range chords.Keys() {
		keys = append(keys, keyItem{key: k})
	}
	keyList := list.New(keys, list.NewDefaultDelegate(), 0, 0)
	keyList.Title = "Transpose to"
	keyList.SetFilteringEnabled(false)
	keyList.SetShowHelp(false)

	input := textinput.New()
	input.Placeholder = "Clip name"
	input.CharLimit = 80

	return &Model{
		ctx:       ctx,
		view:      DraftListView,
		drafts:    opts.Drafts,
		clips:     opts.Clips,
		engine:    opts.Engine,
		events:    opts.Events,
		syncer:    opts.Sync,
		editor:    opts.Editor,
		copy:      opts.Copy,
		draftList: draftList,
		clipList:  clipList,
		keyList:   keyList,
		input:     input,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init loads the drafts and starts listening for engine events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadDrafts(), m.events.Wait())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.draftList.SetSize(msg.Width-4, msg.Height-8)
		m.clipList.SetSize(msg.Width-4, max(msg.Height/2-4, 6))
		m.keyList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DraftListView:
			return m.handleDraftListKeys(msg)
		case StudioView:
			return m.handleStudioKeys(msg)
		case RenameView:
			return m.handleRenameKeys(msg)
		case KeyPickerView:
			return m.handleKeyPickerKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDraftsLoaded:
		data := msg.data.(draftsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.drafts))
		for i, d := range data.drafts {
			items[i] = draftItem{draft: d}
		}
		return m, m.draftList.SetItems(items)

	case MsgDraftOpened:
		data := msg.data.(draftOpened)
		if data.err != nil {
			m.status = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.engine.Load(data.clips)
		m.draft = data.draft
		m.dirty = false
		m.status = ""
		m.clipList.Title = "Clips"
		m.refreshClips()
		m.view = StudioView
		return m, nil

	case MsgClipsChanged:
		if m.draft != nil {
			m.dirty = true
		}
		m.refreshClips()
		return m, m.events.Wait()

	case MsgStateChanged, MsgPlaybackChanged:
		m.refreshClips()
		return m, m.events.Wait()

	case MsgEngineError:
		m.status = styles.err.Render(msg.data.(error).Error())
		return m, m.events.Wait()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		return m.finishSync(msg.data.(syncComplete))

	case MsgTransposed:
		data := msg.data.(transposed)
		m.view = StudioView
		if data.err != nil {
			m.status = styles.err.Render(data.err.Error())
			return m, nil
		}
		m.draft = data.result.Draft
		m.status = styles.ok.Render(fmt.Sprintf("Transposed %d chords from %s to %s", data.result.Chords, data.result.From, data.result.To))
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case DraftListView:
		return m.renderDraftList()
	case StudioView:
		return m.renderStudio()
	case RenameView:
		return m.renderRename()
	case KeyPickerView:
		return m.renderKeyPicker()
	case SyncView:
		return m.renderSync()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return ""
	}
}

func (m *Model) handleDraftListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.draftList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.draftList, cmd = m.draftList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.draftList.SelectedItem().(draftItem); ok {
			return m, m.openDraft(item.draft)
		}
	}

	var cmd tea.Cmd
	m.draftList, cmd = m.draftList.Update(msg)
	return m, cmd
}

func (m *Model) handleStudioKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.leave(quitApp)
	case key.Matches(msg, m.keys.back):
		return m.leave(leaveDraft)
	case key.Matches(msg, m.keys.record):
		if m.engine.State().Recording() {
			return m, m.stopCapture()
		}
		return m, m.startCapture(false)
	case key.Matches(msg, m.keys.mixed):
		return m, m.startCapture(true)
	case key.Matches(msg, m.keys.play):
		if clip, ok := m.selectedClip(); ok {
			m.report(m.engine.TogglePlay(clip.ID))
		}
		return m, nil
	case key.Matches(msg, m.keys.rename):
		if clip, ok := m.selectedClip(); ok {
			m.input.SetValue(clip.Name)
			m.input.CursorEnd()
			m.view = RenameView
			return m, m.input.Focus()
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if clip, ok := m.selectedClip(); ok {
			m.report(m.engine.DeleteClip(clip.ID))
		}
		return m, nil
	case key.Matches(msg, m.keys.transpose):
		if current, err := chords.ParseKey(m.draft.Key()); err == nil {
			m.keyList.Select(int(current))
		}
		m.view = KeyPickerView
		return m, nil
	case key.Matches(msg, m.keys.copy):
		if err := m.copy(m.draft.Content()); err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Copy failed: %v", err))
		} else {
			m.status = styles.ok.Render("Sheet copied to clipboard")
		}
		return m, nil
	case key.Matches(msg, m.keys.sync):
		m.then = stay
		return m, m.startSync()
	case key.Matches(msg, m.keys.micUp):
		return m, m.adjustGain(capture.MicSource, gainStep)
	case key.Matches(msg, m.keys.micDown):
		return m, m.adjustGain(capture.MicSource, -gainStep)
	case key.Matches(msg, m.keys.sysUp):
		return m, m.adjustGain(capture.SystemSource, gainStep)
	case key.Matches(msg, m.keys.sysDown):
		return m, m.adjustGain(capture.SystemSource, -gainStep)
	}

	var cmd tea.Cmd
	m.clipList, cmd = m.clipList.Update(msg)
	return m, cmd
}

func (m *Model) handleRenameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.view = StudioView
		return m, nil
	case "enter":
		if clip, ok := m.selectedClip(); ok {
			m.report(m.engine.RenameClip(clip.ID, m.input.Value()))
		}
		m.input.Blur()
		m.view = StudioView
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyPickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = StudioView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.keyList.SelectedItem().(keyItem); ok {
			return m, m.transpose(item.key)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.keyList, cmd = m.keyList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		return m, m.startSync()
	case key.Matches(msg, m.keys.no):
		return m.discard()
	case key.Matches(msg, m.keys.back):
		m.then = stay
		m.view = StudioView
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case DraftListView:
		m.draftList, cmd = m.draftList.Update(msg)
	case StudioView:
		m.clipList, cmd = m.clipList.Update(msg)
	case KeyPickerView:
		m.keyList, cmd = m.keyList.Update(msg)
	case RenameView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// leave stops any recording and playback, then asks to save unsynced clips before doing next.
func (m *Model) leave(next afterSync) (tea.Model, tea.Cmd) {
	if m.engine.State().Recording() {
		if _, err := m.engine.Stop(); err != nil {
			m.report(err)
		}
	}
	m.engine.StopPlayback()

	m.then = next
	if m.dirty || m.hasTransientClips() {
		m.view = ConfirmView
		return m, nil
	}
	return m.proceed()
}

// discard drops unsaved recordings and carries on with the pending action.
func (m *Model) discard() (tea.Model, tea.Cmd) {
	for _, clip := range m.engine.Clips() {
		if clip.IsTransient() {
			m.report(m.engine.DeleteClip(clip.ID))
		}
	}
	m.dirty = false
	return m.proceed()
}

func (m *Model) proceed() (tea.Model, tea.Cmd) {
	switch m.then {
	case quitApp:
		return m, tea.Quit
	case leaveDraft:
		m.then = stay
		m.draft = nil
		m.dirty = false
		m.status = ""
		m.engine.Load(nil)
		m.refreshClips()
		m.view = DraftListView
		return m, m.loadDrafts()
	default:
		m.view = StudioView
		return m, nil
	}
}

func (m *Model) hasTransientClips() bool {
	for _, clip := range m.engine.Clips() {
		if clip.IsTransient() {
			return true
		}
	}
	return false
}

func (m *Model) selectedClip() (models.AudioClip, bool) {
	item, ok := m.clipList.SelectedItem().(clipItem)
	return item.clip, ok
}

func (m *Model) report(err error) {
	if err != nil {
		m.status = styles.err.Render(err.Error())
	}
}

// refreshClips rebuilds the clip list from the engine, keeping the cursor in place.
func (m *Model) refreshClips() {
	clips := m.engine.Clips()
	playing := m.engine.Playing()

	items := make([]list.Item, len(clips))
	for i, clip := range clips {
		items[i] = clipItem{clip: clip, playing: clip.ID == playing}
	}

	index := m.clipList.Index()
	m.clipList.SetItems(items)
	if index >= len(items) {
		index = len(items) - 1
	}
	if index >= 0 {
		m.clipList.Select(index)
	}
}

func (m *Model) adjustGain(src capture.Source, delta float64) tea.Cmd {
	gains := m.engine.Gains()
	current := gains.Mic
	if src == capture.SystemSource {
		current = gains.System
	}
	m.report(m.engine.SetGain(src, max(current+delta, 0)))
	return nil
}

func (m *Model) loadDrafts() tea.Cmd {
	return func() tea.Msg {
		drafts, err := m.drafts.List(nil)
		return draftsLoadedMsg(drafts, err)
	}
}

func (m *Model) openDraft(draft *models.Draft) tea.Cmd {
	return func() tea.Msg {
		rows, err := m.clips.ListByDraft(draft.ID())
		if err != nil {
			return draftOpenedMsg(nil, nil, err)
		}
		clips := make([]models.AudioClip, len(rows))
		for i, row := range rows {
			clips[i] = row.Clip()
		}
		return draftOpenedMsg(draft, clips, nil)
	}
}

// startCapture acquires devices off the update loop; failures arrive as engine events.
func (m *Model) startCapture(mixed bool) tea.Cmd {
	if !mixed {
		return func() tea.Msg {
			m.engine.StartMicCapture(m.ctx)
			return nil
		}
	}

	base := ""
	if clip, ok := m.selectedClip(); ok {
		base = clip.Name
	}
	return func() tea.Msg {
		m.engine.StartMixedCapture(m.ctx, base)
		return nil
	}
}

func (m *Model) stopCapture() tea.Cmd {
	return func() tea.Msg {
		m.engine.Stop()
		return nil
	}
}

func (m *Model) transpose(target chords.Key) tea.Cmd {
	if m.editor == nil {
		m.view = StudioView
		return nil
	}
	draftID := m.draft.ID()
	return func() tea.Msg {
		result, err := m.editor.TransposeDraft(m.ctx, nil, draftID, target.String())
		return transposedMsg(result, err)
	}
}

func (m *Model) startSync() tea.Cmd {
	if m.syncer == nil || m.draft == nil {
		m.status = styles.warn.Render("Clip storage is not configured")
		m.view = StudioView
		return nil
	}
	if m.engine.State() != capture.Idle {
		m.status = styles.warn.Render("Stop recording before saving")
		m.view = StudioView
		return nil
	}

	m.view = SyncView
	m.progress = tasks.ProgressUpdate{}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.syncDone = make(chan Msg, 1)

	progress, done := m.progressChan, m.syncDone
	draftID, snapshot := m.draft.ID(), m.engine.Clips()
	go func() {
		result, err := m.syncer.Sync(m.ctx, progress, draftID, snapshot)
		close(progress)
		done <- syncCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.syncDone
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) finishSync(data syncComplete) (tea.Model, tea.Cmd) {
	m.progressChan = nil
	m.syncDone = nil
	m.refreshClips()

	if data.err != nil {
		m.then = stay
		m.view = StudioView
		m.status = styles.err.Render(fmt.Sprintf("Save failed: %v", data.err))
		return m, nil
	}

	m.dirty = false
	r := data.result
	m.status = styles.ok.Render(fmt.Sprintf("Saved: %d uploaded, %d renamed, %d removed", len(r.Uploaded), len(r.Renamed), len(r.Removed)))
	return m.proceed()
}

func (m *Model) renderDraftList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.draftList.View(), helpView)
}

func (m *Model) renderStudio() string {
	if m.draft == nil {
		return ""
	}

	title := styles.title.Render(fmt.Sprintf("%s · %s", m.draft.Title(), m.draft.Key()))
	sheet := formatter.HighlightChords(m.draft.Content(), func(s string) string { return styles.chord.Render(s) })

	state := m.engine.State()
	label := styles.help.Render(state.String())
	if state.Recording() {
		label = styles.rec.Render("● " + state.String())
	}
	gains := m.engine.Gains()
	meters := fmt.Sprintf("%s  mic %3.0f%%  base %3.0f%%", label, gains.Mic*100, gains.System*100)

	helpKeys := []key.Binding{m.keys.record, m.keys.mixed, m.keys.play, m.keys.rename, m.keys.remove, m.keys.transpose, m.keys.copy, m.keys.sync, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)

	var b strings.Builder
	b.WriteString(title + "\n")
	if sheet != "" {
		b.WriteString(sheet + "\n\n")
	}
	b.WriteString(m.clipList.View() + "\n\n")
	b.WriteString(meters + "\n")
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString("\n" + helpView)
	return b.String()
}

func (m *Model) renderRename() string {
	title := styles.title.Render("Rename clip")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}

func (m *Model) renderKeyPicker() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n\n%s", m.keyList.View(), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Saving clips")

	var phase string
	switch m.progress.Phase {
	case tasks.UploadClips:
		phase = fmt.Sprintf("Uploading (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.RenameClips:
		phase = "Updating names..."
	case tasks.RemoveClips:
		phase = "Removing deleted clips..."
	default:
		phase = "Comparing clips..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderConfirm() string {
	unsaved := 0
	for _, clip := range m.engine.Clips() {
		if clip.IsTransient() {
			unsaved++
		}
	}

	title := styles.title.Render(fmt.Sprintf("Save changes to '%s'?", m.draft.Title()))
	info := fmt.Sprintf("\nUnsaved recordings: %d\nAnswering no discards them.\n", unsaved)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
