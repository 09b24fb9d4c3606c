package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/services"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PersistFunc tells the capture side that a clip now lives at a durable URI.
// [capture.Engine.MarkPersisted] satisfies it.
type PersistFunc func(id, uri string) error

// ClipFailure records one clip operation that did not complete.
type ClipFailure struct {
	ClipID string
	Name   string
	Phase  Phase
	Err    error
}

func (f ClipFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Phase, f.Name, f.Err)
}

func (f ClipFailure) Unwrap() error { return f.Err }

// SyncResult summarizes a [ClipSync.Sync] call.
type SyncResult struct {
	Run      *models.SyncRun
	Uploaded []models.AudioClip // Clips as stored, with their durable URIs
	Renamed  []string           // IDs of clips whose names were updated
	Removed  []string           // IDs of clips deleted from the store
	Skipped  []string           // IDs of durable clips that belong to no row of this draft
	Failures []ClipFailure
}

// ClipSync reconciles the clips held by a capture engine with the clips stored for a draft.
//
// Transient clips are uploaded and recorded, stored clips whose names changed are updated, and
// stored clips missing from the snapshot are deleted together with their audio.
type ClipSync struct {
	drafts  DraftStore
	clips   ClipStore
	runs    RunStore
	storage services.Storage
	blobs   capture.Blobs
	persist PersistFunc
	workers int
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewClipSync creates a ClipSync. persist may be nil when no engine needs to learn the durable URIs.
func NewClipSync(drafts DraftStore, clips ClipStore, runs RunStore, storage services.Storage, blobs capture.Blobs, persist PersistFunc) *ClipSync {
	return &ClipSync{
		drafts:  drafts,
		clips:   clips,
		runs:    runs,
		storage: storage,
		blobs:   blobs,
		persist: persist,
		workers: 4,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  log.New(io.Discard),
	}
}

// WithLimits bounds concurrent uploads and storage requests per second. A zero rps disables limiting.
func (s *ClipSync) WithLimits(workers int, rps float64) *ClipSync {
	if workers > 0 {
		s.workers = min(workers, 16)
	}
	if rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return s
}

// WithLogger sets the logger used for per-clip diagnostics.
func (s *ClipSync) WithLogger(logger *log.Logger) *ClipSync {
	if logger != nil {
		s.logger = logger
	}
	return s
}

type syncPlan struct {
	uploads  []models.AudioClip
	renames  []*models.PersistedClip
	removals []*models.PersistedClip
	skipped  []string
}

func plan(snapshot []models.AudioClip, stored []*models.PersistedClip) syncPlan {
	var p syncPlan

	rows := make(map[string]*models.PersistedClip, len(stored))
	for _, row := range stored {
		rows[row.ID()] = row
	}

	seen := make(map[string]bool, len(snapshot))
	for _, clip := range snapshot {
		seen[clip.ID] = true
		row, ok := rows[clip.ID]
		switch {
		case clip.IsTransient():
			p.uploads = append(p.uploads, clip)
		case !ok:
			p.skipped = append(p.skipped, clip.ID)
		case row.Name() != clip.Name:
			row.SetName(clip.Name)
			p.renames = append(p.renames, row)
		}
	}

	for _, row := range stored {
		if !seen[row.ID()] {
			p.removals = append(p.removals, row)
		}
	}
	return p
}

// Sync brings the stored clips of draftID in line with snapshot, the engine's current clip list.
//
// Individual clip failures do not stop the run; they are collected in the result and the returned
// error wraps [shared.ErrSyncIncomplete]. Every call is recorded as a [models.SyncRun].
func (s *ClipSync) Sync(ctx context.Context, progress chan<- ProgressUpdate, draftID string, snapshot []models.AudioClip) (*SyncResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("%w: storage not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, loadDraftUpdate(draftID))
	if _, err := s.drafts.Get(draftID); err != nil {
		return nil, err
	}

	run := models.NewSyncRun(0, draftID)
	if err := s.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to record sync run: %w", err)
	}
	run.Start()

	result := &SyncResult{Run: run}
	err := s.sync(ctx, progress, draftID, snapshot, result)

	run.SetCounts(len(snapshot), len(result.Uploaded), len(result.Renamed), len(result.Removed), len(result.Failures))
	run.Finish(err)
	if uerr := s.runs.Update(run); uerr != nil {
		s.logger.Error("failed to update sync run", "run", run.ID(), "error", uerr)
	}

	s.logger.Info("sync finished",
		"draft", draftID,
		"uploaded", len(result.Uploaded),
		"renamed", len(result.Renamed),
		"removed", len(result.Removed),
		"failed", len(result.Failures),
		"duration", run.Duration(),
	)
	return result, err
}

func (s *ClipSync) sync(ctx context.Context, progress chan<- ProgressUpdate, draftID string, snapshot []models.AudioClip, result *SyncResult) error {
	stored, err := s.clips.ListByDraft(draftID)
	if err != nil {
		return fmt.Errorf("failed to load stored clips: %w", err)
	}
	sendProgress(progress, loadClipsUpdate(len(stored), len(snapshot)))

	p := plan(snapshot, stored)
	result.Skipped = p.skipped
	for _, id := range p.skipped {
		s.logger.Warn("clip has a durable uri but no row in this draft", "clip", id, "draft", draftID)
	}

	if err := s.upload(ctx, progress, draftID, p.uploads, result); err != nil {
		return err
	}

	for i, row := range p.renames {
		if err := s.clips.Update(row); err != nil {
			result.Failures = append(result.Failures, ClipFailure{row.ID(), row.Name(), RenameClips, err})
			continue
		}
		result.Renamed = append(result.Renamed, row.ID())
		sendProgress(progress, renameClipUpdate(i+1, len(p.renames), row.Name()))
	}

	for i, row := range p.removals {
		if err := s.remove(ctx, row); err != nil {
			result.Failures = append(result.Failures, ClipFailure{row.ID(), row.Name(), RemoveClips, err})
			continue
		}
		result.Removed = append(result.Removed, row.ID())
		sendProgress(progress, removeClipUpdate(i+1, len(p.removals), row.Name()))
	}

	if len(result.Failures) > 0 {
		errs := make([]error, len(result.Failures))
		for i, f := range result.Failures {
			errs[i] = f
		}
		return fmt.Errorf("%w: %d clip operations failed: %w", shared.ErrSyncIncomplete, len(errs), errors.Join(errs...))
	}
	return nil
}

type uploaded struct {
	clip models.AudioClip
	err  error
}

// upload stores the audio of transient clips concurrently, then records each one in order.
//
// Rows are written from this goroutine only; a row that cannot be written has its object removed again.
func (s *ClipSync) upload(ctx context.Context, progress chan<- ProgressUpdate, draftID string, clips []models.AudioClip, result *SyncResult) error {
	if len(clips) == 0 {
		return nil
	}

	outcomes := make([]uploaded, len(clips))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, clip := range clips {
		g.Go(func() error {
			stored, err := s.put(gctx, draftID, clip)
			outcomes[i] = uploaded{stored, err}

			mu.Lock()
			done++
			step := done
			mu.Unlock()

			if err != nil {
				sendProgress(progress, uploadFailedUpdate(step, len(clips), clip.Name, err))
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			sendProgress(progress, uploadClipUpdate(step, len(clips), clip.Name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload cancelled: %w", err)
	}

	for i, out := range outcomes {
		clip := clips[i]
		if out.err != nil {
			result.Failures = append(result.Failures, ClipFailure{clip.ID, clip.Name, UploadClips, out.err})
			continue
		}

		row := models.NewPersistedClip(0, draftID, out.clip)
		if err := s.clips.Create(row); err != nil {
			if derr := s.storage.Delete(ctx, out.clip.SourceURI); derr != nil {
				s.logger.Warn("failed to remove orphaned clip audio", "uri", out.clip.SourceURI, "error", derr)
			}
			result.Failures = append(result.Failures, ClipFailure{clip.ID, clip.Name, UploadClips, err})
			continue
		}
		result.Uploaded = append(result.Uploaded, out.clip)

		if s.persist != nil {
			if err := s.persist(clip.ID, out.clip.SourceURI); err != nil {
				s.logger.Warn("engine no longer holds the uploaded clip", "clip", clip.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *ClipSync) put(ctx context.Context, draftID string, clip models.AudioClip) (models.AudioClip, error) {
	if s.blobs == nil {
		return clip, fmt.Errorf("no blob store for transient clip %s", clip.SourceURI)
	}
	data, mimeType, err := s.blobs.Open(clip.SourceURI)
	if err != nil {
		return clip, err
	}
	if mimeType == "" {
		mimeType = clip.MimeType
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return clip, err
	}

	key := services.ClipKey(draftID, clip.ID, softcap.Extension(mimeType))
	uri, err := s.storage.Put(ctx, key, data, mimeType)
	if err != nil {
		return clip, err
	}
	s.logger.Debug("clip uploaded", "clip", clip.ID, "uri", uri, "size", len(data))

	clip.SourceURI = uri
	clip.MimeType = mimeType
	clip.Size = len(data)
	return clip, nil
}

func (s *ClipSync) remove(ctx context.Context, row *models.PersistedClip) error {
	if err := s.clips.Delete(row.ID()); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, row.SourceURI()); err != nil {
		return fmt.Errorf("row removed but audio remains at %s: %w", row.SourceURI(), err)
	}
	return nil
}
