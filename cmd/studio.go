package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
	"github.com/desertthunder/compuse/internal/tasks"
	"github.com/desertthunder/compuse/internal/ui"
	"github.com/urfave/cli/v3"
)

// Studio launches the interactive recording studio.
func (r *Runner) Studio(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	storage, err := r.openStorage(ctx)
	if err != nil {
		r.logger.Warn("clip storage unavailable, saving is disabled", "error", err)
	}

	blobs := capture.NewMemoryBlobs()
	events := ui.NewEvents(0)
	engine, err := capture.NewEngine(events.Bind(capture.Options{
		Capabilities: r.provider(softcap.FromConfig(r.config.Capture)),
		Blobs:        blobs,
		Players:      r.players(ctx, blobs, storage),
		Logger:       r.logger,
		Gains:        r.gains(),
	}))
	if err != nil {
		return err
	}
	defer engine.Close()

	var syncer *tasks.ClipSync
	if storage != nil {
		syncer = r.clipSync(s, storage, blobs, engine.MarkPersisted)
	}

	model := ui.NewModel(ctx, ui.Options{
		Drafts: s.drafts,
		Clips:  s.clips,
		Engine: engine,
		Events: events,
		Sync:   syncer,
		Editor: tasks.NewDraftEngine(s.drafts, s.clips, storage, r.logger),
	})

	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running studio: %w", err)
	}
	return nil
}
