package repositories

import (
	"context"

	"github.com/desertthunder/acctsync/internal/models"
)

// RecordSource returns the ordered records of one ledger origin.
type RecordSource interface {
	Name() string
	Kind() models.RecordKind
	Records(ctx context.Context) ([]models.Record, error)
}

type ledgerSource struct {
	name  string
	kind  models.RecordKind
	fetch func(context.Context) ([]models.Record, error)
}

func (s ledgerSource) Name() string            { return s.name }
func (s ledgerSource) Kind() models.RecordKind { return s.kind }

func (s ledgerSource) Records(ctx context.Context) ([]models.Record, error) {
	return s.fetch(ctx)
}

// NewTransactionSource reads sub-account transactions.
func NewTransactionSource(r *LedgerRepository) RecordSource {
	return ledgerSource{name: "sub_transactions", kind: models.KindTransaction, fetch: r.AccountTransactions}
}

// NewRefundSource reads refunded accounts.
func NewRefundSource(r *LedgerRepository) RecordSource {
	return ledgerSource{name: "refunded_accounts", kind: models.KindRefund, fetch: r.RefundedAccounts}
}

// NewAccountSource reads team-assigned sub-accounts.
func NewAccountSource(r *LedgerRepository) RecordSource {
	return ledgerSource{name: "sub_accounts", kind: models.KindAccount, fetch: r.AccountsWithTeam}
}
