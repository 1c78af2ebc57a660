package tasks

import (
	"fmt"

	"github.com/desertthunder/acctsync/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline phase enumeration
type Phase int

const (
	ReadSources Phase = iota
	MergeIdentities
	Authenticate
	Enrich
	AssembleRows
	WriteSnapshot
	SyncSheets
)

func (p Phase) String() string {
	switch p {
	case ReadSources:
		return "read_sources"
	case MergeIdentities:
		return "merge"
	case Authenticate:
		return "authenticate"
	case Enrich:
		return "enrich"
	case AssembleRows:
		return "assemble"
	case WriteSnapshot:
		return "snapshot"
	case SyncSheets:
		return "sync"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func readSourceUpdate(step, total int, name string, count int, err error) ProgressUpdate {
	msg := fmt.Sprintf("Read %d records from %s", count, name)
	if err != nil {
		msg = fmt.Sprintf("✗ %s: %v", name, err)
	}
	return ProgressUpdate{Phase: ReadSources, Step: step, Total: total, Message: msg}
}

func mergeUpdate(identities int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeIdentities,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merged %d unique identities", identities),
	}
}

func authenticateUpdate(err error) ProgressUpdate {
	msg := "Authenticated with status API"
	if err != nil {
		msg = fmt.Sprintf("✗ Authentication failed: %v", err)
	}
	return ProgressUpdate{Phase: Authenticate, Step: 1, Total: 1, Message: msg}
}

func enrichUpdate(step, total int, id models.Identity, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   Enrich,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id.AccountUID, err),
			Data:    id,
		}
	}
	return ProgressUpdate{
		Phase:   Enrich,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, id.AccountUID, id.TeamName),
		Data:    id,
	}
}

func assembleUpdate(teams, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AssembleRows,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Assembled %d rows across %d teams", rows, teams),
	}
}

func snapshotUpdate(path string, err error) ProgressUpdate {
	msg := fmt.Sprintf("Snapshot written to %s", path)
	if err != nil {
		msg = fmt.Sprintf("✗ Snapshot failed: %v", err)
	}
	return ProgressUpdate{Phase: WriteSnapshot, Step: 1, Total: 1, Message: msg, Data: path}
}

func syncUpdate(step, total int, report models.TeamReport, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   SyncSheets,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, report.Team, err),
		}
	}
	return ProgressUpdate{
		Phase:   SyncSheets,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d rows)", step, total, report.Team, len(report.Rows)),
	}
}
