// Package ui implements the recording studio as a terminal interface using bubbletea's Elm architecture.
//
// The TUI moves between these views:
//  1. [DraftListView] : Browse and filter drafts
//  2. [StudioView] : Read the chord sheet, record, play, rename and delete clips
//  3. [RenameView] : Edit a clip name
//  4. [KeyPickerView] : Choose a key to transpose the sheet into
//  5. [ConfirmView] : Save or discard unsaved recordings before leaving a draft
//  6. [SyncView] : Monitor clip uploads
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Capture engine callbacks reach the model through [Events], and sync progress flows through a channel from the ClipSync.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
