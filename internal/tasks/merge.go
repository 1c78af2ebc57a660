package tasks

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/shared"
)

// Field names differ per source; the first present name wins.
var (
	providerKeys = []string{"mcc_uuid", "provider_uuid"}
	teamKeys     = []string{"team_name"}
)

// accountKeys returns the account id columns for a record kind. Transactions carry the sub-account under
// sub_account_uid and may also reference a parent account_uid, so order matters.
func accountKeys(kind models.RecordKind) []string {
	if kind == models.KindTransaction {
		return []string{"sub_account_uid", "account_uid"}
	}
	return []string{"account_uid", "sub_account_uid"}
}

// IdentityFrom builds the identity triple of a record, normalizing the per-source field names.
func IdentityFrom(kind models.RecordKind, rec models.Record) (models.Identity, error) {
	account, ok := rec.FirstString(accountKeys(kind)...)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: account_uid", shared.ErrMissingKey)
	}
	provider, ok := rec.FirstString(providerKeys...)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: mcc_uuid", shared.ErrMissingKey)
	}
	team, ok := rec.FirstString(teamKeys...)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: team_name", shared.ErrMissingKey)
	}

	return models.Identity{AccountUID: account, ProviderUUID: provider, TeamName: team}, nil
}

// Merge unions the identities of transactions, refunds and accounts with exact-value equality.
//
// Records missing a key field are logged and skipped. The result is in first-seen order.
func Merge(logger *log.Logger, transactions, refunds, accounts []models.Record) []models.Identity {
	seen := make(map[models.Identity]struct{})
	var identities []models.Identity

	sources := []struct {
		kind    models.RecordKind
		records []models.Record
	}{
		{models.KindTransaction, transactions},
		{models.KindRefund, refunds},
		{models.KindAccount, accounts},
	}

	for _, src := range sources {
		for i, rec := range src.records {
			id, err := IdentityFrom(src.kind, rec)
			if err != nil {
				if logger != nil {
					logger.Warn("skipping record", "source", src.kind, "index", i, "error", err)
				}
				continue
			}

			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			identities = append(identities, id)
		}
	}

	return identities
}
