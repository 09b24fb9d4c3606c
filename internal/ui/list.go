package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
)

var (
	_ list.Item = draftItem{}
	_ list.Item = clipItem{}
	_ list.Item = keyItem{}
)

// draftItem wraps [models.Draft] to implement [list.Item].
type draftItem struct {
	draft *models.Draft
}

func (i draftItem) FilterValue() string { return i.draft.Title() }
func (i draftItem) Title() string       { return fmt.Sprintf("#%d %s", i.draft.Sequence(), i.draft.Title()) }
func (i draftItem) Description() string {
	desc := fmt.Sprintf("Key of %s", i.draft.Key())
	if line, _, _ := strings.Cut(strings.TrimSpace(i.draft.Content()), "\n"); line != "" {
		desc = fmt.Sprintf("%s • %s", desc, line)
	}
	return desc
}

// clipItem wraps [models.AudioClip] to implement [list.Item].
type clipItem struct {
	clip    models.AudioClip
	playing bool
}

func (i clipItem) FilterValue() string { return i.clip.Name }
func (i clipItem) Title() string {
	if i.playing {
		return "▶ " + i.clip.Name
	}
	return i.clip.Name
}
func (i clipItem) Description() string {
	desc := fmt.Sprintf("%s • %s", shared.FormatBytes(i.clip.Size), i.clip.CreatedAt.Format("15:04:05"))
	if i.clip.IsTransient() {
		desc += " • not saved"
	}
	return desc
}

// keyItem wraps [chords.Key] to implement [list.Item].
type keyItem struct {
	key chords.Key
}

func (i keyItem) FilterValue() string { return i.key.String() }
func (i keyItem) Title() string       { return i.key.String() }
func (i keyItem) Description() string { return "" }
