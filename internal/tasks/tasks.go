// package tasks implements the long-running draft operations: syncing captured clips to storage,
// transposing chord sheets and exporting drafts.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/services"
	"github.com/desertthunder/compuse/internal/shared"
)

// DraftStore is the part of the draft repository the tasks need.
type DraftStore interface {
	Get(id string) (*models.Draft, error)
	Update(draft *models.Draft) error
}

// ClipStore is the part of the clip repository the tasks need.
type ClipStore interface {
	Create(clip *models.PersistedClip) error
	Update(clip *models.PersistedClip) error
	Delete(id string) error
	ListByDraft(draftID string) ([]*models.PersistedClip, error)
}

// RunStore records sync history.
type RunStore interface {
	Create(run *models.SyncRun) error
	Update(run *models.SyncRun) error
}

// TransposeResult describes a transposed draft.
type TransposeResult struct {
	Draft  *models.Draft
	From   chords.Key
	To     chords.Key
	Chords int // Chord tokens in the sheet
}

// DraftEngine runs operations on stored drafts.
type DraftEngine struct {
	drafts  DraftStore
	clips   ClipStore
	storage services.Storage
	logger  *log.Logger
}

// NewDraftEngine creates a DraftEngine. storage is only needed to export clip audio.
func NewDraftEngine(drafts DraftStore, clips ClipStore, storage services.Storage, logger *log.Logger) *DraftEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DraftEngine{drafts: drafts, clips: clips, storage: storage, logger: logger}
}

// TransposeDraft rewrites the draft's chord sheet into target and saves it with target as its key.
//
// The stored key and target must both be one of the twelve key names; flat spellings of target are accepted.
func (e *DraftEngine) TransposeDraft(ctx context.Context, progress chan<- ProgressUpdate, draftID, target string) (*TransposeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	to, err := chords.ParseKey(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}

	sendProgress(progress, loadDraftUpdate(draftID))
	draft, err := e.drafts.Get(draftID)
	if err != nil {
		return nil, err
	}

	from, err := chords.ParseKey(draft.Key())
	if err != nil {
		return nil, fmt.Errorf("%w: draft %s has key %q: %w", shared.ErrInvalidInput, draftID, draft.Key(), err)
	}

	result := &TransposeResult{Draft: draft, From: from, To: to, Chords: len(chords.Chords(draft.Content()))}
	if from == to {
		return result, nil
	}

	draft.SetContent(chords.Transpose(from, to, draft.Content()))
	draft.SetKey(to.String())
	if err := e.drafts.Update(draft); err != nil {
		return nil, fmt.Errorf("failed to save transposed draft: %w", err)
	}

	e.logger.Info("draft transposed", "draft", draftID, "from", from, "to", to, "chords", result.Chords)
	sendProgress(progress, transposeUpdate(from.String(), to.String(), result.Chords))
	return result, nil
}
