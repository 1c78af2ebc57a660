package tasks

import (
	"sort"
	"time"

	"github.com/desertthunder/acctsync/internal/models"
)

// NoDisplayID is shown when the status API has no customer id for an account.
const NoDisplayID = "N/A"

// BuildRow applies the precedence rules that reconcile local ledger records with the remote status.
//
//   - date: the account's created date when an account record exists and the status is not terminal,
//     else the refund's completed_time falling back to its created date, else null
//   - spend: remote spend, unless it is zero or null and a refund exists, then the refund's last_spend
//     when the ledger has one; a null spend otherwise stays null
//   - refund: the refund's refund_value when a refund exists, else null
//
// account and refund may be nil when the ledger has no record.
func BuildRow(id models.Identity, account, refund models.Record, provider models.Record, remote models.RemoteAccount) models.EnrichedRow {
	row := models.EnrichedRow{
		Identity:  id,
		Team:      id.TeamName,
		DisplayID: remote.CustomerID,
		Email:     remote.Email,
		Balance:   remote.Balance,
		Spend:     remote.Spend,
		Status:    remote.Status,
	}

	if row.DisplayID == "" {
		row.DisplayID = NoDisplayID
	}
	row.Provider, _ = provider.String("mcc_name")

	switch {
	case account != nil && !remote.Status.IsTerminal():
		row.Date, _ = account.Time("created")
	case refund != nil:
		if d, ok := refund.Time("completed_time"); ok {
			row.Date = d
		} else {
			row.Date, _ = refund.Time("created")
		}
	}

	if refund != nil {
		if !remote.Spend.Valid || remote.Spend.Decimal.IsZero() {
			if last := refund.Decimal("last_spend"); last.Valid {
				row.Spend = last
			}
		}
		row.Refund = refund.Decimal("refund_value")
	}

	return row
}

// Assemble groups rows by team, each sorted by date descending. Rows without a date sort last;
// ties keep their input order.
func Assemble(rows []models.EnrichedRow) map[string][]models.EnrichedRow {
	groups := make(map[string][]models.EnrichedRow)
	for _, row := range rows {
		groups[row.Team] = append(groups[row.Team], row)
	}

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return sortKey(group[i].Date).After(sortKey(group[j].Date))
		})
	}
	return groups
}

// sortKey treats a missing date as the oldest possible value.
func sortKey(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Reports orders assembled groups by team name.
func Reports(groups map[string][]models.EnrichedRow) []models.TeamReport {
	teams := make([]string, 0, len(groups))
	for team := range groups {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	reports := make([]models.TeamReport, 0, len(teams))
	for _, team := range teams {
		reports = append(reports, models.TeamReport{Team: team, Rows: groups[team]})
	}
	return reports
}
