package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadDraft Phase = iota
	LoadClips
	UploadClips
	RenameClips
	RemoveClips
	TransposeSheet
	ExportDraft
)

func (p Phase) String() string {
	switch p {
	case LoadDraft:
		return "load_draft"
	case LoadClips:
		return "load_clips"
	case UploadClips:
		return "upload_clips"
	case RenameClips:
		return "rename_clips"
	case RemoveClips:
		return "remove_clips"
	case TransposeSheet:
		return "transpose_sheet"
	case ExportDraft:
		return "export_draft"
	default:
		return ""
	}
}

func loadDraftUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadDraft,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading draft %s...", id),
	}
}

func loadClipsUpdate(stored, captured int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadClips,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Comparing %d captured clips with %d stored clips...", captured, stored),
	}
}

func uploadClipUpdate(step, total int, clip string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadClips,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Uploaded %s", step, total, clip),
		Data:    clip,
	}
}

func uploadFailedUpdate(step, total int, clip string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadClips,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, clip, err),
		Data:    err,
	}
}

func renameClipUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RenameClips,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Renamed clip to %s", name),
	}
}

func removeClipUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveClips,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Removed clip %s", name),
	}
}

func transposeUpdate(from, to string, chords int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TransposeSheet,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transposed %d chords from %s to %s", chords, from, to),
	}
}

func exportingDraftUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDraft,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Exporting draft %s...", title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDraft,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDraft,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

// sendProgress delivers update without blocking; updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
