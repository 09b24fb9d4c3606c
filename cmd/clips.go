package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
	"github.com/desertthunder/compuse/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultRecordDuration = 10 * time.Second

// ClipsList prints the stored clips of a draft.
func (r *Runner) ClipsList(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	export, err := loadExport(s, cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(export.Clips, true)
	case cmd.Bool("csv"):
		data, err := formatter.ExportToCSV(export)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	if len(export.Clips) == 0 {
		return r.writePlain("No clips for #%d %s\n", export.Draft.Sequence(), export.Draft.Title())
	}

	r.writePlainHeader(fmt.Sprintf("Clips of #%d %s", export.Draft.Sequence(), export.Draft.Title()))
	for i, c := range export.Clips {
		r.writePlain("%2d. %-24s %9s  %s  %s\n", i+1, c.Name, shared.FormatBytes(c.Size), c.CreatedAt.Format("2006-01-02 15:04"), c.ID)
	}
	return nil
}

// ClipsRecord records one clip from the configured inputs and saves it to the draft.
func (r *Runner) ClipsRecord(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	export, err := loadExport(s, cmd.StringArg("draft"))
	if err != nil {
		return err
	}

	storage, err := r.openStorage(ctx)
	if err != nil {
		return err
	}

	opts := softcap.FromConfig(r.config.Capture)
	if mic := cmd.String("mic"); mic != "" {
		opts.MicInput = mic
	}
	if system := cmd.String("system"); system != "" {
		opts.SystemInput = system
	}

	gains := r.gains()
	if g := cmd.Float("mic-gain"); g >= 0 {
		gains.Mic = g
	}
	if g := cmd.Float("system-gain"); g >= 0 {
		gains.System = g
	}

	blobs := capture.NewMemoryBlobs()
	engine, err := capture.NewEngine(capture.Options{
		Capabilities: r.provider(opts),
		Blobs:        blobs,
		Players:      noPlayers{},
		Logger:       r.logger,
		Gains:        gains,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	// Stored clips stay in the snapshot so the sync keeps them.
	engine.Load(export.Clips)

	name := strings.TrimSpace(cmd.String("name"))
	if cmd.Bool("mixed") {
		err = engine.StartMixedCapture(ctx, name)
	} else {
		err = engine.StartMicCapture(ctx)
	}
	if err != nil {
		return err
	}

	duration := cmd.Duration("duration")
	r.writePlain("● Recording for %s...\n", duration)
	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	clip, err := engine.Stop()
	if err != nil {
		return err
	}
	if name != "" && clip.Name != name {
		if err := engine.RenameClip(clip.ID, name); err != nil {
			return err
		}
	}

	syncer := r.clipSync(s, storage, blobs, engine.MarkPersisted)
	progress := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Phase == tasks.UploadClips {
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()

	// The recording is already captured; a cancelled context must not lose it.
	result, err := syncer.Sync(context.WithoutCancel(ctx), progress, export.Draft.ID(), engine.Clips())
	close(progress)
	<-done
	if err != nil {
		return err
	}

	saved := clip
	for _, up := range result.Uploaded {
		if up.ID == clip.ID {
			saved = up
		}
	}
	if name != "" {
		saved.Name = name
	}
	return r.writePlain("✓ Saved %s (%s) to #%d %s\n", saved.Name, shared.FormatBytes(saved.Size), export.Draft.Sequence(), export.Draft.Title())
}

// ClipsPlay plays a stored clip to the end, or until interrupted.
func (r *Runner) ClipsPlay(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	row, err := r.resolveClip(s, cmd)
	if err != nil {
		return err
	}

	storage, err := r.openStorage(ctx)
	if err != nil {
		return err
	}

	player, err := r.players(ctx, nil, storage).Open(row.SourceURI())
	if err != nil {
		return fmt.Errorf("%w: %w", capture.ErrPlayback, err)
	}
	defer player.Close()

	ended := make(chan struct{})
	if err := player.Play(func() { close(ended) }); err != nil {
		return fmt.Errorf("%w: %w", capture.ErrPlayback, err)
	}

	r.writePlain("▶ %s\n", row.Name())
	select {
	case <-ended:
	case <-ctx.Done():
		player.Pause()
	}
	return nil
}

// ClipsRename renames a stored clip.
func (r *Runner) ClipsRename(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: clip name cannot be blank", shared.ErrInvalidArgument)
	}

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	row, err := r.resolveClip(s, cmd)
	if err != nil {
		return err
	}

	old := row.Name()
	row.SetName(name)
	if err := s.clips.Update(row); err != nil {
		return err
	}

	r.logger.Info("clip renamed", "id", row.ID(), "from", old, "to", name)
	return r.writePlain("✓ Renamed %s to %s\n", old, name)
}

// ClipsDelete removes a stored clip row and its audio object.
func (r *Runner) ClipsDelete(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	row, err := r.resolveClip(s, cmd)
	if err != nil {
		return err
	}

	storage, err := r.openStorage(ctx)
	if err != nil {
		return err
	}

	if err := s.clips.Delete(row.ID()); err != nil {
		return err
	}
	if err := storage.Delete(ctx, row.SourceURI()); err != nil {
		r.logger.Warn("clip row deleted but audio remains", "uri", row.SourceURI(), "error", err)
	}

	return r.writePlain("✓ Deleted %s\n", row.Name())
}

// ClipsExport copies a stored clip's audio to a local file.
func (r *Runner) ClipsExport(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	row, err := r.resolveClip(s, cmd)
	if err != nil {
		return err
	}

	storage, err := r.openStorage(ctx)
	if err != nil {
		return err
	}

	data, mimeType, err := storage.Get(ctx, row.SourceURI())
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		clip := row.Clip()
		clip.MimeType = mimeType
		path = formatter.ClipFilename(0, clip)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return r.writePlain("✓ Wrote %s (%s)\n", path, shared.FormatBytes(len(data)))
}

func (r *Runner) resolveClip(s *store, cmd *cli.Command) (*models.PersistedClip, error) {
	draft, err := s.draft(cmd.StringArg("draft"))
	if err != nil {
		return nil, err
	}
	ref := cmd.StringArg("clip")
	if ref == "" {
		return nil, fmt.Errorf("%w: clip is required", shared.ErrMissingArgument)
	}
	return s.clip(draft.ID(), ref)
}
