package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/compuse/internal/capture"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/playback"
	"github.com/desertthunder/compuse/internal/repositories"
	"github.com/desertthunder/compuse/internal/services"
	"github.com/desertthunder/compuse/internal/shared"
	"github.com/desertthunder/compuse/internal/softcap"
	"github.com/desertthunder/compuse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       io.Reader
	storage     services.Storage
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Storage    services.Storage // Overrides the storage selected by the config
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       opts.Input,
		storage:     opts.Storage,
		openBrowser: shared.OpenBrowser,
	}
}

// SetLogger replaces the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, keysCommand, transposeCommand, draftsCommand, clipsCommand, studioCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// store bundles the repositories over one database handle.
type store struct {
	db     *sql.DB
	drafts *repositories.DraftRepository
	clips  *repositories.ClipRepository
	runs   *repositories.SyncRunRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

// draft resolves a draft by sequence number (as listed) or ID.
func (s *store) draft(ref string) (*models.Draft, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: draft is required", shared.ErrMissingArgument)
	}
	if seq, err := strconv.Atoi(ref); err == nil {
		return s.drafts.GetBySequence(seq)
	}
	return s.drafts.Get(ref)
}

// clip resolves a clip of draftID by ID, or by 1-based position in the draft's clip list.
func (s *store) clip(draftID, ref string) (*models.PersistedClip, error) {
	rows, err := s.clips.ListByDraft(draftID)
	if err != nil {
		return nil, err
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(rows) {
		return rows[n-1], nil
	}
	for _, row := range rows {
		if row.ID() == ref {
			return row, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrClipNotFound, ref)
}

// openStore opens the configured database and brings its schema up to date.
func (r *Runner) openStore() (*store, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &store{
		db:     db,
		drafts: repositories.NewDraftRepository(db),
		clips:  repositories.NewClipRepository(db),
		runs:   repositories.NewSyncRunRepository(db),
	}, nil
}

func (r *Runner) openStorage(ctx context.Context) (services.Storage, error) {
	if r.storage != nil {
		return r.storage, nil
	}
	storage, err := services.NewStorage(ctx, r.config.Storage, r.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip storage: %w", err)
	}
	r.storage = storage
	return storage, nil
}

// clipSync builds the sync task for an engine with the storage limits from the config.
func (r *Runner) clipSync(s *store, storage services.Storage, blobs capture.Blobs, persist tasks.PersistFunc) *tasks.ClipSync {
	return tasks.NewClipSync(s.drafts, s.clips, s.runs, storage, blobs, persist).
		WithLimits(r.config.Storage.Workers, r.config.Storage.RateLimit).
		WithLogger(r.logger)
}

// provider builds the software capture provider from the capture config section.
func (r *Runner) provider(opts softcap.Options) *softcap.Provider {
	opts.Stdin = r.input
	opts.Logger = r.logger
	return softcap.New(opts)
}

func (r *Runner) gains() capture.Gains {
	return capture.Gains{Mic: r.config.Capture.MicGain, System: r.config.Capture.SystemGain}
}

// players plays clips on the system audio output, fetching stored clips through storage.
//
// Without an audio device every Open fails and the engine reports a playback error.
func (r *Runner) players(ctx context.Context, blobs capture.Blobs, storage services.Storage) capture.Players {
	format := softcap.Format{SampleRate: r.config.Capture.SampleRate, Channels: r.config.Capture.Channels}
	device, err := playback.OpenOto(format)
	if err != nil {
		r.logger.Warn("audio output unavailable", "error", err)
		return noPlayers{err: err}
	}

	var fetch playback.Fetcher
	if storage != nil {
		fetch = func(uri string) ([]byte, string, error) {
			return storage.Get(ctx, uri)
		}
	}
	return playback.New(device, blobs, fetch, r.logger)
}

// noPlayers stands in when there is no audio output.
type noPlayers struct {
	err error
}

func (p noPlayers) Open(uri string) (capture.Player, error) {
	if p.err != nil {
		return nil, p.err
	}
	return nil, fmt.Errorf("%w: playback is disabled", shared.ErrServiceUnavailable)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
