package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/compuse/internal/formatter"
	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
	"golang.org/x/time/rate"
)

// ExportOpts contains configuration for draft exports.
type ExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: compuse_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Storage reads per second (default: 5)
	WithAudio  bool    // Copy clip audio next to markdown exports
}

// DraftExportResult is the outcome of exporting one draft.
type DraftExportResult struct {
	DraftID    string   `json:"draft_id"`
	DraftTitle string   `json:"draft_title"`
	Success    bool     `json:"success"`
	Files      []string `json:"files"`
	Error      error    `json:"-"`
	ErrorText  string   `json:"error,omitempty"`
}

// ExportResult summarizes an [DraftEngine.Export] call.
type ExportResult struct {
	TotalDrafts       int                 `json:"total_drafts"`
	SuccessfulExports int                 `json:"successful_exports"`
	FailedExports     int                 `json:"failed_exports"`
	OutputDirectory   string              `json:"output_directory"`
	ManifestPath      string              `json:"-"`
	Results           []DraftExportResult `json:"results"`
}

type exportJob struct {
	export *formatter.DraftExport
}

// Export writes the given drafts, with their clips, to opts.OutputDir.
//
// Drafts are loaded sequentially and written by a pool of workers. Failures are reported per draft
// and an export_manifest.json summarizing the run is written last.
func (e *DraftEngine) Export(ctx context.Context, progress chan<- ProgressUpdate, ids []string, opts ExportOpts) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("compuse_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.WithAudio && e.storage == nil {
		return nil, fmt.Errorf("%w: storage not initialized", shared.ErrServiceUnavailable)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalDrafts:     len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]DraftExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(ids))
	results := make(chan DraftExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, limiter, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}

			export, err := e.load(id)
			if err != nil {
				results <- DraftExportResult{
					DraftID:    id,
					DraftTitle: fmt.Sprintf("Unknown (%s)", id),
					Error:      err,
				}
				continue
			}

			sendProgress(progress, exportingDraftUpdate(i+1, len(ids), export.Draft.Title()))
			jobs <- exportJob{export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.ErrorText = res.Error.Error()
			result.FailedExports++
			sendProgress(progress, exportFailedUpdate(completed, len(ids), res.DraftTitle, res.Error))
		} else {
			result.SuccessfulExports++
			sendProgress(progress, exportCompletedUpdate(completed, len(ids), res.DraftTitle, len(res.Files)))
		}
		result.Results = append(result.Results, res)
	}

	manifest, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := os.WriteFile(manifestPath, manifest, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *DraftEngine) load(id string) (*formatter.DraftExport, error) {
	draft, err := e.drafts.Get(id)
	if err != nil {
		return nil, err
	}
	rows, err := e.clips.ListByDraft(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load clips: %w", err)
	}

	clips := make([]models.AudioClip, len(rows))
	for i, row := range rows {
		clips[i] = row.Clip()
	}
	return &formatter.DraftExport{Draft: draft, Clips: clips}, nil
}

// exportWorker is a worker goroutine that exports drafts from the jobs channel.
func (e *DraftEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan exportJob,
	results chan<- DraftExportResult,
	limiter *rate.Limiter,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- e.exportDraft(ctx, job, limiter, opts)
	}
}

// exportDraft exports a single draft to the requested format.
func (e *DraftEngine) exportDraft(ctx context.Context, j exportJob, limiter *rate.Limiter, opts ExportOpts) DraftExportResult {
	d := j.export.Draft
	result := DraftExportResult{
		DraftID:    d.ID(),
		DraftTitle: d.Title(),
		Files:      []string{},
	}

	switch opts.Format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(j.export, filepath.Join(opts.OutputDir, d.ID()))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.ClipsFile, csvRes.MetadataFile}

	case "markdown":
		var audio map[string][]byte
		if opts.WithAudio {
			audio = e.fetchAudio(ctx, j.export.Clips, limiter)
		}

		mdRes, err := formatter.WriteMarkdownExport(j.export, filepath.Join(opts.OutputDir, d.ID()), audio)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case "txt":
		path, err := formatter.WriteTextExport(j.export, filepath.Join(opts.OutputDir, d.ID()+".txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case "json":
		fallthrough
	default:
		jsonPath := filepath.Join(opts.OutputDir, d.ID()+".json")
		data, err := formatter.ToMetadataJSON(j.export)
		if err != nil {
			result.Error = fmt.Errorf("JSON marshal failed: %w", err)
			return result
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			result.Error = fmt.Errorf("JSON write failed: %w", err)
			return result
		}
		result.Files = []string{jsonPath}
	}

	result.Success = true
	return result
}

// fetchAudio loads clip audio from storage. Clips that cannot be read are logged and left out.
func (e *DraftEngine) fetchAudio(ctx context.Context, clips []models.AudioClip, limiter *rate.Limiter) map[string][]byte {
	audio := make(map[string][]byte, len(clips))
	for _, clip := range clips {
		if err := limiter.Wait(ctx); err != nil {
			return audio
		}
		data, _, err := e.storage.Get(ctx, clip.SourceURI)
		if err != nil {
			e.logger.Warn("failed to fetch clip audio", "clip", clip.ID, "error", err)
			continue
		}
		audio[clip.ID] = data
	}
	return audio
}
