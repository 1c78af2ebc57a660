package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the status label reported by the account-status API.
type AccountStatus string

const (
	StatusActive      AccountStatus = "ACTIVE"
	StatusInactive    AccountStatus = "INACTIVE"
	StatusClosed      AccountStatus = "CLOSED"
	StatusForceClosed AccountStatus = "FORCE_CLOSED"
)

// IsTerminal reports whether the account can no longer spend. Terminal accounts take their
// report date from the refund ledger instead of the account registry.
func (s AccountStatus) IsTerminal() bool {
	switch AccountStatus(strings.ToUpper(string(s))) {
	case StatusInactive, StatusClosed, StatusForceClosed:
		return true
	default:
		return false
	}
}

// RemoteAccount is one status record from the account-status API.
type RemoteAccount struct {
	CustomerID string
	Email      string
	Status     AccountStatus
	Balance    decimal.NullDecimal
	Spend      decimal.NullDecimal
}

// EnrichedRow is the report row for one [Identity] after local and remote lookups.
type EnrichedRow struct {
	Identity  Identity
	Team      string
	DisplayID string
	Provider  string
	Email     string
	Date      *time.Time
	Balance   decimal.NullDecimal
	Spend     decimal.NullDecimal
	Refund    decimal.NullDecimal
	Status    AccountStatus
}

// Flagged reports whether the row should be highlighted: refunded or in a terminal status.
func (r EnrichedRow) Flagged() bool {
	return r.Refund.Valid || r.Status.IsTerminal()
}

// ReportColumns is the fixed column order of a team report.
var ReportColumns = []string{"ID", "MCC", "DATE", "EMAIL", "AMOUNT", "SPEND", "REFUND", "CURRENT STATUS"}

// TeamReport is the date-ordered set of rows written to one team's tab.
type TeamReport struct {
	Team string
	Rows []EnrichedRow
}

// DropStage names where an identity fell out of the pipeline.
type DropStage string

const (
	StageMerge  DropStage = "merge"
	StageEnrich DropStage = "enrich"
	StageSync   DropStage = "sync"
)

// Drop records an identity that did not produce a report row.
type Drop struct {
	Identity Identity
	Stage    DropStage
	Reason   string
}
