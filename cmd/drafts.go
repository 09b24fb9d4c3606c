package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/compuse/internal/chords"
	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DraftsCreate stores a new draft. The key is normalized to its sharp spelling.
func (r *Runner) DraftsCreate(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrMissingArgument)
	}

	key, err := chords.ParseKey(cmd.String("key"))
	if err != nil {
		return fmt.Errorf("%w: --key: %w", shared.ErrInvalidFlag, err)
	}

	var content string
	if cmd.String("content") != "" || cmd.String("file") != "" {
		if content, err = r.readText(cmd.String("content"), cmd.String("file")); err != nil {
			return err
		}
	}

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	draft := models.NewDraft(0, title, key.String(), content)
	if err := s.drafts.Create(draft); err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}

	r.logger.Info("draft created", "id", draft.ID(), "sequence", draft.Sequence(), "key", draft.Key())
	return r.writePlain("✓ Created draft #%d %s (%s)\n", draft.Sequence(), draft.Title(), draft.Key())
}

// DraftsList prints stored drafts, optionally filtered by key or title.
func (r *Runner) DraftsList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{}
	if key := cmd.String("key"); key != "" {
		k, err := chords.ParseKey(key)
		if err != nil {
			return fmt.Errorf("%w: --key: %w", shared.ErrInvalidFlag, err)
		}
		criteria["key"] = k.String()
	}
	if title := cmd.String("title"); title != "" {
		criteria["title"] = title
	}

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	drafts, err := s.drafts.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]formatter.DraftMetadata, len(drafts))
		for i, d := range drafts {
			out[i] = formatter.Metadata(&formatter.DraftExport{Draft: d})
		}
		return r.writeJSON(out, true)
	}

	if len(drafts) == 0 {
		return r.writePlain("No drafts yet. Create one with 'compuse drafts create'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Drafts (%d)", len(drafts)))
	for _, d := range drafts {
		r.writePlain("#%-3d %-4s %s\n", d.Sequence(), d.Key(), d.Title())
	}
	return nil
}

// DraftsShow prints one draft with its sheet, chords and clips.
func (r *Runner) DraftsShow(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	export, err := loadExport(s, cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.Metadata(export), true)
	}

	d := export.Draft
	content := d.Content()
	if cmd.Bool("highlight") {
		content = formatter.HighlightChords(content, bracket)
	}

	r.writePlainHeader(fmt.Sprintf("#%d %s", d.Sequence(), d.Title()))
	r.writePlain("Key: %s\n", d.Key())
	if names := formatter.ChordNames(d.Content()); len(names) > 0 {
		r.writePlain("Chords: %s\n", strings.Join(names, " "))
	}
	if content != "" {
		r.writePlain("\n%s\n", strings.TrimRight(content, "\n"))
	}

	if len(export.Clips) > 0 {
		r.writePlainln("Clips (%d):", len(export.Clips))
		for i, c := range export.Clips {
			r.writePlain("  %d. %s (%s, %s)\n", i+1, c.Name, shared.FormatBytes(c.Size), c.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

// DraftsTranspose rewrites a stored draft into another key.
func (r *Runner) DraftsTranspose(ctx context.Context, cmd *cli.Command) error {
	target := cmd.StringArg("key")
	if target == "" {
		return fmt.Errorf("%w: key is required", shared.ErrMissingArgument)
	}

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	draft, err := s.draft(cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	editor := tasks.NewDraftEngine(s.drafts, s.clips, nil, r.logger)
	result, err := editor.TransposeDraft(ctx, nil, draft.ID(), target)
	if err != nil {
		return err
	}

	if result.From == result.To {
		return r.writePlain("Draft #%d is already in %s\n", draft.Sequence(), result.To)
	}
	r.writePlain("✓ Transposed #%d %s from %s to %s (%d chords)\n\n", draft.Sequence(), draft.Title(), result.From, result.To, result.Chords)
	return r.writePlain("%s\n", strings.TrimRight(result.Draft.Content(), "\n"))
}

// DraftsExport writes drafts and their clips to a directory using a worker pool.
func (r *Runner) DraftsExport(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var ids []string
	if cmd.Bool("all") {
		drafts, err := s.drafts.List(nil)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			ids = append(ids, d.ID())
		}
	} else {
		for _, ref := range cmd.Args().Slice() {
			d, err := s.draft(ref)
			if err != nil {
				return err
			}
			ids = append(ids, d.ID())
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: name drafts to export or pass --all", shared.ErrMissingArgument)
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  r.config.Storage.RateLimit,
		WithAudio:  cmd.Bool("audio"),
	}

	var editor *tasks.DraftEngine
	if opts.WithAudio {
		storage, err := r.openStorage(ctx)
		if err != nil {
			return err
		}
		editor = tasks.NewDraftEngine(s.drafts, s.clips, storage, r.logger)
	} else {
		editor = tasks.NewDraftEngine(s.drafts, s.clips, nil, r.logger)
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("  [%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := editor.Export(ctx, progress, ids, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Exported: %d/%d drafts\n", result.SuccessfulExports, result.TotalDrafts)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("\nFailed:\n")
		for _, res := range result.Results {
			if res.Error != nil {
				r.writePlain("  - %s: %v\n", res.DraftTitle, res.Error)
			}
		}
		return fmt.Errorf("%d of %d exports failed", result.FailedExports, result.TotalDrafts)
	}
	return nil
}

// DraftsDelete soft-deletes a draft together with its clip rows. --purge also deletes the stored audio.
func (r *Runner) DraftsDelete(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	draft, err := s.draft(cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	rows, err := s.clips.ListByDraft(draft.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("purge") && len(rows) > 0 {
		storage, err := r.openStorage(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for _, row := range rows {
			if err := storage.Delete(ctx, row.SourceURI()); err != nil {
				errs = append(errs, fmt.Errorf("clip %s: %w", row.Name(), err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("failed to purge clip audio: %w", err)
		}
	}

	if err := s.drafts.Delete(draft.ID()); err != nil {
		return err
	}

	r.logger.Info("draft deleted", "id", draft.ID(), "clips", len(rows))
	return r.writePlain("✓ Deleted draft #%d %s (%d clips)\n", draft.Sequence(), draft.Title(), len(rows))
}

// DraftsHistory lists the clip syncs recorded for a draft.
func (r *Runner) DraftsHistory(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	draft, err := s.draft(cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	runs, err := s.runs.List(map[string]any{"draft_id": draft.ID()})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type runJSON struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Total    int    `json:"clips_total"`
			Uploaded int    `json:"uploaded"`
			Renamed  int    `json:"renamed"`
			Removed  int    `json:"removed"`
			Failed   int    `json:"failed"`
			Error    string `json:"error,omitempty"`
		}
		out := make([]runJSON, len(runs))
		for i, run := range runs {
			out[i] = runJSON{run.ID(), string(run.Status()), run.ClipsTotal(), run.Uploaded(), run.Renamed(), run.Removed(), run.Failed(), run.ErrorMessage()}
		}
		return r.writeJSON(out, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No clip syncs for #%d %s\n", draft.Sequence(), draft.Title())
	}

	r.writePlainHeader(fmt.Sprintf("Syncs of #%d %s", draft.Sequence(), draft.Title()))
	for _, run := range runs {
		r.writePlain("#%-3d %-9s %s  +%d ~%d -%d", run.Sequence(), run.Status(), shared.FormatDuration(run.Duration()), run.Uploaded(), run.Renamed(), run.Removed())
		if run.Failed() > 0 {
			r.writePlain("  (%d failed: %s)", run.Failed(), run.ErrorMessage())
		}
		r.writePlain("\n")
	}
	return nil
}

// loadExport resolves a draft and its stored clips.
func loadExport(s *store, ref string) (*formatter.DraftExport, error) {
	draft, err := s.draft(ref)
	if err != nil {
		return nil, err
	}

	rows, err := s.clips.ListByDraft(draft.ID())
	if err != nil {
		return nil, err
	}

	clips := make([]models.AudioClip, len(rows))
	for i, row := range rows {
		clips[i] = row.Clip()
	}
	return &formatter.DraftExport{Draft: draft, Clips: clips}, nil
}
