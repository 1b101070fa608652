package tasks

import (
	"fmt"

	"github.com/desertthunder/vtx/internal/models"
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
	FetchPlaylist Phase = iota
	ExportPlaylist
	UploadVideo
	PublishVideo
	FetchAccount
	FetchHistory
	FetchDashboard
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylist:
		return "fetch_playlist"
	case ExportPlaylist:
		return "export_playlist"
	case UploadVideo:
		return "upload_video"
	case PublishVideo:
		return "publish_video"
	case FetchAccount:
		return "fetch_account"
	case FetchHistory:
		return "fetch_history"
	case FetchDashboard:
		return "fetch_dashboard"
	default:
		return ""
	}
}

func fetchingPlaylistsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Fetching %d playlists...", total),
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

// uploadProgressUpdate reports bytes as steps so the UI can render a byte-level bar.
func uploadProgressUpdate(written, total int64) ProgressUpdate {
	pct := 0
	if total > 0 {
		pct = int(written * 100 / total)
	}
	return ProgressUpdate{
		Phase:   UploadVideo,
		Step:    int(written),
		Total:   int(total),
		Message: fmt.Sprintf("Uploading... %d%%", pct),
	}
}

func publishedUpdate(v *models.Video) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishVideo,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Published: %s (ID: %s)", v.Title, v.ID),
		Data:    v,
	}
}

func operationUpdate(op backupOperation, step int, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   op.phase,
		Step:    step,
		Total:   total,
		Message: op.message,
	}
}
