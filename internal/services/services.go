// package services defines the remote collaborators of the pipeline and their HTTP implementations
//
// Account-status API, Google Sheets
package services

import (
	"context"

	"github.com/desertthunder/acctsync/internal/models"
	"google.golang.org/api/sheets/v4"
)

// StatusClient verifies accounts against the account-status API.
type StatusClient interface {
	// Authenticate obtains the session shared by every lookup in a run.
	Authenticate(ctx context.Context) (*models.Session, error)

	// Verify returns the current status of one account. It never panics or aborts on a miss;
	// transport failures come back as [models.LookupFailed].
	Verify(ctx context.Context, session *models.Session, accountUID string) models.Lookup[models.RemoteAccount]
}

// Destination is a spreadsheet the sync engine writes team reports to.
type Destination interface {
	// Tabs lists existing tabs by title.
	Tabs(ctx context.Context) (map[string]int64, error)

	// CreateTab adds a tab and returns its id.
	CreateTab(ctx context.Context, title string) (int64, error)

	// ClearRange resets values and formatting of the top-left rows x cols region.
	ClearRange(ctx context.Context, tabID, rows, cols int64) error

	// BatchUpdate applies value and formatting requests in one remote call.
	BatchUpdate(ctx context.Context, requests []*sheets.Request) error
}

var (
	_ StatusClient = (*StatusService)(nil)
	_ Destination  = (*SheetsService)(nil)
)
